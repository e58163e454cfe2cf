// Package fork provides the fork controller: the per-block dispatch
// decision maker of the control core.
//
// For every valid block fetched while idle, the controller either leaves
// the block to serial execution, splits it across idle workers, or forks a
// speculative task on one worker. It owns the history predictor that
// gates forking and retrains it from the validator's verdicts.
package fork

import (
	"fmt"

	"github.com/sarchlab/forksim/insts"
	"github.com/sarchlab/forksim/timing/bus"
	"github.com/sarchlab/forksim/timing/predictor"
)

// State is the fork controller's state.
type State int

const (
	// StateIdle accepts new blocks.
	StateIdle State = iota
	// StateContextCopy waits for the register copy to finish.
	StateContextCopy
	// StateSpecActive waits for the task's verdict.
	StateSpecActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateContextCopy:
		return "context-copy"
	case StateSpecActive:
		return "spec-active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision records what the controller did with this tick's block.
type Decision int

const (
	// DecisionNone means no valid block was presented.
	DecisionNone Decision = iota
	// DecisionSerial leaves a bypass block to the master.
	DecisionSerial
	// DecisionSplit dispatches a conservative block across workers.
	DecisionSplit
	// DecisionDropped means too few idle workers for a conservative split.
	DecisionDropped
	// DecisionNoTrigger means an optimistic block has no backward branch.
	DecisionNoTrigger
	// DecisionNoIdleCore means no worker was free to fork on.
	DecisionNoIdleCore
	// DecisionPredictedFailure means the predictor declined the fork.
	DecisionPredictedFailure
	// DecisionFork starts a speculative task.
	DecisionFork
	// DecisionBusy means a task is in flight and the block was not examined.
	DecisionBusy
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionSerial:
		return "serial"
	case DecisionSplit:
		return "split"
	case DecisionDropped:
		return "dropped"
	case DecisionNoTrigger:
		return "no-trigger"
	case DecisionNoIdleCore:
		return "no-idle-core"
	case DecisionPredictedFailure:
		return "predicted-failure"
	case DecisionFork:
		return "fork"
	case DecisionBusy:
		return "busy"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Config holds fork controller configuration.
type Config struct {
	// NumCores is the total number of cores, master included.
	NumCores int
	// SplitFactor is the number of workers a conservative block is split
	// across. Default is 2.
	SplitFactor int
}

// Task is the single in-flight speculative task.
type Task struct {
	Master    bus.CoreID
	Spec      bus.CoreID
	TriggerPC uint64
	TargetPC  uint64
}

// Inputs are the fork controller's inputs for one tick.
type Inputs struct {
	Block bus.Block
	Tier  insts.Tier
	// Busy is the core status bus indexed by CoreID.
	Busy []bool
	// CopyDone is the context manager's copy-done signal.
	CopyDone bool
	// Verdict is this tick's verdict snapshot.
	Verdict bus.VerdictSignal
}

// Update is a predictor training event applied at the tick boundary.
type Update struct {
	PC      uint64
	Success bool
}

// Outputs are the fork controller's outputs for one tick.
type Outputs struct {
	// Dispatch is indexed by CoreID.
	Dispatch []bus.Dispatch
	Spec     bus.SpecStart
	// CopyStart pulses when a task is forked; CopyTarget names the worker.
	CopyStart  bool
	CopyTarget bus.CoreID

	Decision Decision
	// Ended is set when a verdict ends the task this tick.
	Ended   bool
	Verdict bus.Verdict
	// Task is the task this tick's outputs refer to.
	Task Task
	// Update is the predictor update staged this tick, if any.
	Update *Update
}

type regs struct {
	state State
	task  Task
}

// Controller is the fork controller state machine.
type Controller struct {
	numCores    int
	splitFactor int

	predictor *predictor.Predictor
	decoder   *insts.Decoder

	cur, next regs
	update    *Update
}

// New creates an idle fork controller that owns p.
func New(config Config, p *predictor.Predictor) *Controller {
	split := config.SplitFactor
	if split <= 0 {
		split = 2
	}

	return &Controller{
		numCores:    config.NumCores,
		splitFactor: split,
		predictor:   p,
		decoder:     insts.NewDecoder(),
		cur:         regs{task: noTask()},
	}
}

func noTask() Task {
	return Task{Master: bus.MasterCore, Spec: bus.NoCore}
}

// Predictor returns the history predictor owned by the controller.
func (c *Controller) Predictor() *predictor.Predictor {
	return c.predictor
}

// State returns the current state.
func (c *Controller) State() State {
	return c.cur.state
}

// TaskActive reports the task-active signal, which is held in both
// ContextCopy and SpecActive.
func (c *Controller) TaskActive() bool {
	return c.cur.state != StateIdle
}

// Task returns the latched task. Spec is bus.NoCore while idle.
func (c *Controller) Task() Task {
	return c.cur.task
}

// Eval computes this tick's outputs and stages the next state.
func (c *Controller) Eval(in Inputs) Outputs {
	out := Outputs{
		Dispatch:   make([]bus.Dispatch, c.numCores),
		CopyTarget: bus.NoCore,
		Task:       c.cur.task,
	}
	c.next = c.cur
	c.update = nil

	switch c.cur.state {
	case StateIdle:
		c.evalIdle(in, &out)

	case StateContextCopy:
		task := c.cur.task
		out.Spec = bus.SpecStart{CoreID: task.Spec, PC: task.TargetPC, TaskActive: true}
		out.Decision = busyDecision(in.Block)

		switch {
		case in.Verdict.SquashFor(task.Spec):
			c.end(&out, bus.Squash)
		case in.CopyDone:
			out.Spec.Start = true
			c.next.state = StateSpecActive
		}

	case StateSpecActive:
		task := c.cur.task
		out.Spec = bus.SpecStart{CoreID: task.Spec, PC: task.TargetPC, TaskActive: true}
		out.Decision = busyDecision(in.Block)

		switch {
		case in.Verdict.SquashFor(task.Spec):
			c.end(&out, bus.Squash)
		case in.Verdict.CommitFor(task.Spec):
			c.end(&out, bus.Commit)
		}
	}

	out.Update = c.update
	return out
}

func busyDecision(b bus.Block) Decision {
	if !b.Valid {
		return DecisionNone
	}
	return DecisionBusy
}

// end returns to idle and stages the predictor update for the task.
func (c *Controller) end(out *Outputs, v bus.Verdict) {
	out.Ended = true
	out.Verdict = v
	c.update = &Update{PC: c.cur.task.TriggerPC, Success: v == bus.Commit}
	c.next = regs{state: StateIdle, task: noTask()}
}

func (c *Controller) evalIdle(in Inputs, out *Outputs) {
	if !in.Block.Valid || len(in.Block.Insts) == 0 {
		out.Decision = DecisionNone
		return
	}

	switch in.Tier {
	case insts.TierConservative:
		c.split(in, out)
	case insts.TierOptimistic:
		c.fork(in, out)
	default:
		out.Decision = DecisionSerial
	}
}

// split partitions the block round-robin: position i goes to the
// (i mod N)-th selected worker, preserving program order on each worker.
func (c *Controller) split(in Inputs, out *Outputs) {
	workers := c.idleWorkers(in.Busy, c.splitFactor)
	if len(workers) < c.splitFactor {
		out.Decision = DecisionDropped
		return
	}

	for i, word := range in.Block.Insts {
		w := workers[i%len(workers)]
		out.Dispatch[w].Valid = true
		out.Dispatch[w].Insts = append(out.Dispatch[w].Insts, word)
	}
	out.Decision = DecisionSplit
}

func (c *Controller) fork(in Inputs, out *Outputs) {
	target, ok := c.forkTrigger(in.Block)
	if !ok {
		out.Decision = DecisionNoTrigger
		return
	}

	workers := c.idleWorkers(in.Busy, 1)
	if len(workers) == 0 {
		out.Decision = DecisionNoIdleCore
		return
	}

	if c.predictor.PredictFailure(in.Block.PC) {
		out.Decision = DecisionPredictedFailure
		return
	}

	task := Task{
		Master:    bus.MasterCore,
		Spec:      workers[0],
		TriggerPC: in.Block.PC,
		TargetPC:  target,
	}
	c.next = regs{state: StateContextCopy, task: task}

	out.Decision = DecisionFork
	out.Task = task
	out.CopyStart = true
	out.CopyTarget = task.Spec
}

// forkTrigger reports whether the block ends in a backward pc-relative
// branch, returning its target. Backward means the target lies before the
// block's first instruction.
func (c *Controller) forkTrigger(b bus.Block) (uint64, bool) {
	last := c.decoder.Decode(b.Insts[len(b.Insts)-1])
	if !last.IsPCRelative() {
		return 0, false
	}

	target := last.Target(b.LastPC())
	if target >= b.PC {
		return 0, false
	}
	return target, true
}

// idleWorkers scans workers in increasing index order and returns the
// first n that are not busy. Cores missing from busy count as busy.
func (c *Controller) idleWorkers(busy []bool, n int) []bus.CoreID {
	workers := make([]bus.CoreID, 0, n)
	for id := 1; id < c.numCores && len(workers) < n; id++ {
		if id >= len(busy) || busy[id] {
			continue
		}
		workers = append(workers, bus.CoreID(id))
	}
	return workers
}

// Commit latches the staged state and applies the predictor update.
func (c *Controller) Commit() {
	if c.update != nil {
		c.predictor.Update(c.update.PC, c.update.Success)
		c.update = nil
	}
	c.cur = c.next
}

// Reset returns the controller to idle. The predictor is left untouched.
func (c *Controller) Reset() {
	c.cur = regs{task: noTask()}
	c.next = c.cur
	c.update = nil
}
