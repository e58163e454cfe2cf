// Package tracker provides the memory conflict tracker that detects
// read-after-write hazards between the master core and the active
// speculative core.
//
// The tracker works on post-translation (physical) addresses so that two
// virtual aliases of one location can never hide a conflict. It does no
// work at all while no speculative task is active.
package tracker

import "github.com/sarchlab/forksim/timing/bus"

// Config holds tracker configuration.
type Config struct {
	// NumCores is the total number of cores, master included.
	NumCores int
	// Depth is the read-set capacity per worker core. It should cover the
	// longest expected speculative window.
	Depth int
}

// Inputs are the tracker's inputs for one tick.
type Inputs struct {
	// TaskActive is the fork controller's task-active signal.
	TaskActive bool
	// SpecCore is the designated speculative core of the current task.
	SpecCore bus.CoreID
	// Mem is the memory snoop bus indexed by CoreID.
	Mem []bus.MemAccess
}

// Result is the tracker's combinational output for one tick.
type Result struct {
	// Violation is asserted when the master stores to an address in the
	// speculative core's read-set.
	Violation bool
	// ConflictAddr is the address of the conflicting store.
	ConflictAddr uint64
	// Recorded is asserted when the speculative core's read is logged at
	// the end of the tick.
	Recorded bool
}

// Stats holds tracker statistics.
type Stats struct {
	// StoreChecks is the number of master stores compared while active.
	StoreChecks uint64
	// Violations is the number of detected conflicts.
	Violations uint64
	// Reads is the number of speculative reads recorded.
	Reads uint64
	// Resets is the number of read-set resets caused by verdicts.
	Resets uint64
}

// pending holds the read-set mutations staged for the tick boundary.
type pending struct {
	record     bool
	recordCore bus.CoreID
	recordAddr uint64

	reset     bool
	resetCore bus.CoreID
}

// Tracker detects conflicts between master stores and speculative reads.
type Tracker struct {
	numCores int
	sets     []*ReadSet // indexed by CoreID; the master has none

	next  pending
	stats Stats
}

// New creates a tracker with one read-set per worker core.
func New(config Config) *Tracker {
	t := &Tracker{
		numCores: config.NumCores,
		sets:     make([]*ReadSet, config.NumCores),
	}
	for c := 1; c < config.NumCores; c++ {
		t.sets[c] = NewReadSet(config.Depth)
	}
	return t
}

// ReadSet returns the read-set of a worker core, or nil for the master or
// an out-of-range core.
func (t *Tracker) ReadSet(c bus.CoreID) *ReadSet {
	if !c.IsWorker(t.numCores) {
		return nil
	}
	return t.sets[c]
}

// Stats returns tracker statistics.
func (t *Tracker) Stats() Stats {
	return t.stats
}

// Eval performs the violation check against the read-set contents at the
// start of the tick and stages this tick's speculative read.
func (t *Tracker) Eval(in Inputs) Result {
	result := Result{}
	t.next.record = false

	if !in.TaskActive || !in.SpecCore.IsWorker(t.numCores) {
		return result
	}

	set := t.sets[in.SpecCore]

	master := bus.Access(in.Mem, bus.MasterCore)
	if master.IsWrite() {
		t.stats.StoreChecks++
		if set.Contains(master.Addr) {
			t.stats.Violations++
			result.Violation = true
			result.ConflictAddr = master.Addr
		}
	}

	spec := bus.Access(in.Mem, in.SpecCore)
	if spec.IsRead() {
		t.next.record = true
		t.next.recordCore = in.SpecCore
		t.next.recordAddr = spec.Addr
		result.Recorded = true
	}

	return result
}

// ApplyVerdict stages the read-set reset for the core a verdict names.
// Either verdict clears the log.
func (t *Tracker) ApplyVerdict(v bus.VerdictSignal) {
	t.next.reset = false
	if !v.Valid() || !v.Core.IsWorker(t.numCores) {
		return
	}
	t.next.reset = true
	t.next.resetCore = v.Core
}

// Commit applies staged mutations: the tick's read is logged first, then a
// verdict reset clears the log.
func (t *Tracker) Commit() {
	if t.next.record {
		t.stats.Reads++
		t.sets[t.next.recordCore].Record(t.next.recordAddr)
	}
	if t.next.reset {
		t.stats.Resets++
		t.sets[t.next.resetCore].Reset()
	}
	t.next = pending{}
}

// Reset clears every read-set, staged mutation and statistic.
func (t *Tracker) Reset() {
	for _, set := range t.sets {
		if set != nil {
			set.Reset()
		}
	}
	t.next = pending{}
	t.stats = Stats{}
}
