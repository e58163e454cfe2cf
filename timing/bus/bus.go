// Package bus defines the signal bundles exchanged between the control
// core's components on every tick.
//
// Every bundle is a plain value. A component reads the bundles produced in
// the current tick and never holds on to them across ticks, so a bundle
// behaves like a set of wires rather than a register.
package bus

import "fmt"

// CoreID identifies a compute unit. CoreID 0 is always the master.
type CoreID int

// MasterCore is the authoritative, never-squashed serial core.
const MasterCore CoreID = 0

// NoCore marks an unassigned core slot.
const NoCore CoreID = -1

// IsWorker reports whether the core is a worker among numCores cores.
func (c CoreID) IsWorker(numCores int) bool {
	return c > MasterCore && int(c) < numCores
}

// Block is one fetched instruction block.
type Block struct {
	// PC is the address of the first instruction.
	PC uint64
	// Insts holds the fixed-width instruction words in program order.
	Insts []uint32
	// Valid indicates the fetch bus carries a block this tick.
	Valid bool
}

// LastPC returns the address of the block's last instruction.
func (b Block) LastPC() uint64 {
	if len(b.Insts) == 0 {
		return b.PC
	}
	return b.PC + uint64(len(b.Insts)-1)*4
}

// MemAccess is one core's post-translation memory access for a tick.
type MemAccess struct {
	Addr    uint64
	IsStore bool
	Valid   bool
}

// IsRead reports whether the access is a valid load.
func (m MemAccess) IsRead() bool {
	return m.Valid && !m.IsStore
}

// IsWrite reports whether the access is a valid store.
func (m MemAccess) IsWrite() bool {
	return m.Valid && m.IsStore
}

// Dispatch is the per-core instruction dispatch for conservative splits.
type Dispatch struct {
	Valid bool
	Insts []uint32
}

// SpecStart tells a worker to begin speculative execution.
type SpecStart struct {
	CoreID CoreID
	PC     uint64
	// Start pulses for one tick when the worker should begin at PC.
	Start bool
	// TaskActive is held while a speculative task is in flight.
	TaskActive bool
}

// CopyControl is the handshake between fork controller and context manager.
type CopyControl struct {
	Start bool
	Done  bool
}

// CopyBus is the register transfer bus driven by the context manager.
// Reads are synchronous: data for ReadAddr arrives on the next tick's
// DataIn input.
type CopyBus struct {
	ReadAddr    int
	ReadEnable  bool
	WriteAddr   int
	WriteEnable []bool // indexed by destination CoreID
	DataOut     uint64
}

// Writes reports whether any destination write enable is asserted.
func (b CopyBus) Writes() bool {
	for _, we := range b.WriteEnable {
		if we {
			return true
		}
	}
	return false
}

// Verdict is the validator's decision about a speculative task.
type Verdict uint8

// Verdicts.
const (
	NoVerdict Verdict = iota
	Squash
	Commit
)

// String returns the lower-case verdict name.
func (v Verdict) String() string {
	switch v {
	case NoVerdict:
		return "none"
	case Squash:
		return "squash"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(v))
	}
}

// VerdictSignal carries at most one verdict per tick for one core.
type VerdictSignal struct {
	Core    CoreID
	Verdict Verdict
}

// None is the idle verdict bus.
func None() VerdictSignal {
	return VerdictSignal{Core: NoCore, Verdict: NoVerdict}
}

// Valid reports whether a verdict is on the bus this tick.
func (v VerdictSignal) Valid() bool {
	return v.Verdict != NoVerdict
}

// SquashFor reports whether a squash is signalled for core c.
func (v VerdictSignal) SquashFor(c CoreID) bool {
	return v.Verdict == Squash && v.Core == c
}

// CommitFor reports whether a commit is signalled for core c.
func (v VerdictSignal) CommitFor(c CoreID) bool {
	return v.Verdict == Commit && v.Core == c
}

// Bit returns the value of a per-core signal, treating out-of-range
// indices as deasserted.
func Bit(bits []bool, c CoreID) bool {
	if c < 0 || int(c) >= len(bits) {
		return false
	}
	return bits[c]
}

// Access returns a core's memory access, treating out-of-range indices as
// no access.
func Access(accesses []MemAccess, c CoreID) MemAccess {
	if c < 0 || int(c) >= len(accesses) {
		return MemAccess{}
	}
	return accesses[c]
}
