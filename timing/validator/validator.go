// Package validator provides the speculative task validator. It follows a
// task from activation through master and speculative completion and
// emits exactly one verdict per task: squash on any hazard or speculative
// exception, commit once both cores have completed cleanly.
package validator

import (
	"fmt"

	"github.com/sarchlab/forksim/timing/bus"
)

// State is the validator's lifecycle state.
type State int

const (
	// StateIdle waits for a task to become active.
	StateIdle State = iota
	// StateWaitMaster waits for the master core to complete.
	StateWaitMaster
	// StateWaitSpec waits for the speculative core to complete.
	StateWaitSpec
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitMaster:
		return "wait-master"
	case StateWaitSpec:
		return "wait-spec"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Inputs are the validator's inputs for one tick.
type Inputs struct {
	TaskActive bool
	SpecCore   bus.CoreID
	// Violation is the tracker's hazard signal for this tick.
	Violation bool
	// MasterDone is the master core's completion signal.
	MasterDone bool
	// SpecDone and Exception are indexed by CoreID.
	SpecDone  []bool
	Exception []bool
}

// ForceSquash reports the unified squash condition: a hazard or an
// exception on the speculative core, only while the task is active.
func (in Inputs) ForceSquash() bool {
	if !in.TaskActive {
		return false
	}
	return in.Violation || bus.Bit(in.Exception, in.SpecCore)
}

// Outputs are the validator's outputs for one tick.
type Outputs struct {
	Verdict bus.VerdictSignal
	// Exception is set when the squash was caused by a speculative exception.
	Exception bool
	// Cancelled is set when the task was deactivated without a verdict.
	Cancelled bool
}

// Validator owns the commit/squash decision.
type Validator struct {
	state State
	next  State
}

// New creates an idle validator.
func New() *Validator {
	return &Validator{}
}

// State returns the current state.
func (v *Validator) State() State {
	return v.state
}

// Eval computes this tick's verdict and stages the next state.
func (v *Validator) Eval(in Inputs) Outputs {
	out := Outputs{Verdict: bus.None()}
	v.next = v.state

	squash := func() {
		out.Verdict = bus.VerdictSignal{Core: in.SpecCore, Verdict: bus.Squash}
		out.Exception = bus.Bit(in.Exception, in.SpecCore)
		v.next = StateIdle
	}

	switch v.state {
	case StateIdle:
		if !in.TaskActive {
			return out
		}
		if in.ForceSquash() {
			// The task ends before it properly started.
			squash()
			return out
		}
		v.next = StateWaitMaster

	case StateWaitMaster:
		switch {
		case !in.TaskActive:
			out.Cancelled = true
			v.next = StateIdle
		case in.ForceSquash():
			squash()
		case in.MasterDone:
			v.next = StateWaitSpec
		}

	case StateWaitSpec:
		switch {
		case !in.TaskActive:
			out.Cancelled = true
			v.next = StateIdle
		case in.ForceSquash():
			squash()
		case bus.Bit(in.SpecDone, in.SpecCore):
			out.Verdict = bus.VerdictSignal{Core: in.SpecCore, Verdict: bus.Commit}
			v.next = StateIdle
		}
	}

	return out
}

// Commit latches the staged state.
func (v *Validator) Commit() {
	v.state = v.next
}

// Reset returns the validator to idle.
func (v *Validator) Reset() {
	v.state = StateIdle
	v.next = StateIdle
}
