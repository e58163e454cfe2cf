package emu

import "github.com/sarchlab/forksim/timing/bus"

// RegBank holds the register files of every core and services the context
// copy bus.
type RegBank struct {
	files  []*RegFile // indexed by CoreID
	dataIn uint64
}

// NewRegBank creates register files for numCores cores with numRegs
// registers each.
func NewRegBank(numCores, numRegs int) *RegBank {
	b := &RegBank{files: make([]*RegFile, numCores)}
	for i := range b.files {
		b.files[i] = NewRegFile(numRegs)
	}
	return b
}

// NumCores returns the number of register files in the bank.
func (b *RegBank) NumCores() int {
	return len(b.files)
}

// File returns the register file of a core, or nil if out of range.
func (b *RegBank) File(c bus.CoreID) *RegFile {
	if c < 0 || int(c) >= len(b.files) {
		return nil
	}
	return b.files[c]
}

// Master returns the master core's register file.
func (b *RegBank) Master() *RegFile {
	return b.files[bus.MasterCore]
}

// DataIn returns the master register value read on the last serviced tick.
func (b *RegBank) DataIn() uint64 {
	return b.dataIn
}

// Service performs one tick of the copy bus: the enabled destination
// writes happen first, then the master read is latched. The latched value
// is returned and must be presented as the next tick's data input.
func (b *RegBank) Service(cb bus.CopyBus) uint64 {
	for i, we := range cb.WriteEnable {
		if we && i < len(b.files) {
			b.files[i].WriteReg(cb.WriteAddr, cb.DataOut)
		}
	}

	if cb.ReadEnable {
		b.dataIn = b.Master().ReadReg(cb.ReadAddr)
	}

	return b.dataIn
}

// Synced reports whether a core's registers match the master's.
func (b *RegBank) Synced(c bus.CoreID) bool {
	f := b.File(c)
	if f == nil {
		return false
	}
	return f.Equal(b.Master())
}

// Reset clears every register file and the read latch.
func (b *RegBank) Reset() {
	for _, f := range b.files {
		f.Reset()
	}
	b.dataIn = 0
}
