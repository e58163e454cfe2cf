// Package ctxcopy provides the context manager that copies the master's
// register file into a worker before speculative execution begins.
//
// The copy is sequential over a shared register bus. Reads are
// synchronous, so step k reads register k while writing register k-1 with
// the data returned for the previous step's read:
//
//	step:   0      1      2     ...   R
//	read:   r0     r1     r2          -
//	write:  -      r0     r1          r(R-1)
//
// After the last write the manager asserts copy-done for exactly one tick.
package ctxcopy

import (
	"fmt"

	"github.com/sarchlab/forksim/timing/bus"
)

// State is the context manager's state.
type State int

const (
	// StateIdle waits for copy-start.
	StateIdle State = iota
	// StateCopying steps through register indices.
	StateCopying
	// StateDone asserts copy-done for one tick.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCopying:
		return "copying"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds context manager configuration.
type Config struct {
	// NumCores is the total number of cores, master included.
	NumCores int
	// NumRegisters is the number of registers transferred per copy.
	NumRegisters int
}

// Inputs are the context manager's inputs for one tick.
type Inputs struct {
	// Start is the fork controller's copy-start pulse.
	Start bool
	// Target is the destination worker latched on Start.
	Target bus.CoreID
	// Verdict is this tick's verdict snapshot; a squash for the copy's
	// target aborts the copy.
	Verdict bus.VerdictSignal
	// DataIn is the master register value read on the previous tick.
	DataIn uint64
}

// Outputs are the context manager's outputs for one tick.
type Outputs struct {
	Done    bool
	Bus     bus.CopyBus
	Aborted bool
}

// Stats holds context manager statistics.
type Stats struct {
	Copies         uint64
	Aborts         uint64
	RegistersMoved uint64
}

type regs struct {
	state  State
	target bus.CoreID
	step   int
}

// Manager drives the register transfer handshake.
type Manager struct {
	numCores int
	numRegs  int

	cur, next regs
	stats     Stats
}

// New creates an idle context manager.
func New(config Config) *Manager {
	return &Manager{
		numCores: config.NumCores,
		numRegs:  config.NumRegisters,
		cur:      regs{target: bus.NoCore},
	}
}

// State returns the current state.
func (m *Manager) State() State {
	return m.cur.state
}

// Target returns the worker currently being copied to, or bus.NoCore.
func (m *Manager) Target() bus.CoreID {
	if m.cur.state == StateIdle {
		return bus.NoCore
	}
	return m.cur.target
}

// Done reports the copy-done signal for this tick. It depends only on the
// current state.
func (m *Manager) Done() bool {
	return m.cur.state == StateDone
}

// Stats returns context manager statistics.
func (m *Manager) Stats() Stats {
	return m.stats
}

// Eval computes this tick's bus activity and stages the next state.
func (m *Manager) Eval(in Inputs) Outputs {
	out := Outputs{}
	m.next = m.cur

	if m.cur.state != StateIdle && in.Verdict.SquashFor(m.cur.target) {
		out.Aborted = true
		m.stats.Aborts++
		m.next = regs{state: StateIdle, target: bus.NoCore}
		return out
	}

	switch m.cur.state {
	case StateIdle:
		if in.Start && in.Target.IsWorker(m.numCores) {
			m.stats.Copies++
			m.next = regs{state: StateCopying, target: in.Target, step: 0}
		}

	case StateCopying:
		step := m.cur.step
		if step < m.numRegs {
			out.Bus.ReadAddr = step
			out.Bus.ReadEnable = true
		}
		if step > 0 {
			out.Bus.WriteAddr = step - 1
			out.Bus.WriteEnable = make([]bool, m.numCores)
			out.Bus.WriteEnable[m.cur.target] = true
			out.Bus.DataOut = in.DataIn
			m.stats.RegistersMoved++
		}
		if step >= m.numRegs {
			m.next.state = StateDone
		} else {
			m.next.step = step + 1
		}

	case StateDone:
		out.Done = true
		m.next = regs{state: StateIdle, target: bus.NoCore}
	}

	return out
}

// Commit latches the staged state.
func (m *Manager) Commit() {
	m.cur = m.next
}

// Reset returns the manager to idle and clears statistics.
func (m *Manager) Reset() {
	m.cur = regs{target: bus.NoCore}
	m.next = m.cur
	m.stats = Stats{}
}
