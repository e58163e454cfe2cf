// Package core provides the lockstep speculative fork control core.
// It wires the fork controller, memory conflict tracker, validator and
// context manager together and advances them on a single global tick.
//
// Every tick, each component computes its outputs and next state from the
// state committed at the end of the previous tick; all state is then
// committed at once. The verdict computed in a tick is a single immutable
// snapshot shared by the predictor update, the tracker reset and the
// context-copy abort.
package core

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/forksim/config"
	"github.com/sarchlab/forksim/insts"
	"github.com/sarchlab/forksim/timing/bus"
	"github.com/sarchlab/forksim/timing/ctxcopy"
	"github.com/sarchlab/forksim/timing/fork"
	"github.com/sarchlab/forksim/timing/predictor"
	"github.com/sarchlab/forksim/timing/tracker"
	"github.com/sarchlab/forksim/timing/validator"
)

// Stats holds statistics for the control core.
type Stats struct {
	// Cycles is the total number of ticks simulated.
	Cycles uint64
	// Forks is the number of speculative tasks started.
	Forks uint64
	// Commits is the number of tasks committed.
	Commits uint64
	// Squashes is the number of tasks squashed.
	Squashes uint64
	// Violations is the number of read-after-write hazards detected.
	Violations uint64
	// SpecExceptions is the number of squashes caused by a speculative
	// exception.
	SpecExceptions uint64
	// SplitDispatches is the number of conservative blocks split across
	// workers.
	SplitDispatches uint64
	// DroppedBlocks is the number of conservative blocks dropped for lack
	// of idle workers.
	DroppedBlocks uint64
	// PredictorDeclines is the number of forks declined by the predictor.
	PredictorDeclines uint64
	// NoIdleCoreDeclines is the number of forks declined because every
	// worker was busy.
	NoIdleCoreDeclines uint64
	// NoTriggerBlocks is the number of optimistic blocks without a
	// backward branch.
	NoTriggerBlocks uint64
	// CopyAborts is the number of context copies aborted by a squash.
	CopyAborts uint64
	// Cancellations is the number of tasks deactivated without a verdict.
	Cancellations uint64
	// SerialBlocks is the number of bypass blocks left to the master.
	SerialBlocks uint64
	// BusyBlocks is the number of blocks presented while a task was in
	// flight.
	BusyBlocks uint64
}

// CommitRate returns the percentage of verdicts that were commits.
func (s Stats) CommitRate() float64 {
	total := s.Commits + s.Squashes
	if total == 0 {
		return 0
	}
	return float64(s.Commits) / float64(total) * 100
}

// Inputs are the buses the control core samples in one tick.
type Inputs struct {
	// Block is the fetched block and Tier is its classification.
	Block bus.Block
	Tier  insts.Tier

	// Busy is the core status bus indexed by CoreID.
	Busy []bool
	// Mem is the post-translation memory snoop bus indexed by CoreID.
	Mem []bus.MemAccess

	// MasterDone is the master core's completion signal.
	MasterDone bool
	// SpecDone and Exception are indexed by CoreID.
	SpecDone  []bool
	Exception []bool

	// CopyDataIn is the master register read on the previous tick.
	CopyDataIn uint64
}

// Outputs are the buses the control core drives in one tick.
type Outputs struct {
	Dispatch []bus.Dispatch
	Spec     bus.SpecStart
	Copy     bus.CopyControl
	CopyBus  bus.CopyBus
	Verdict  bus.VerdictSignal

	// Violation is the tracker's hazard signal.
	Violation bool
	// Decision is what the fork controller did with the block.
	Decision fork.Decision
	// Task is the task the outputs refer to.
	Task fork.Task
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger for per-tick events. By default nothing is
// logged.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// Core is the lockstep control core. It is not safe for concurrent use.
type Core struct {
	config *config.Config

	predictor *predictor.Predictor
	fork      *fork.Controller
	tracker   *tracker.Tracker
	validator *validator.Validator
	copier    *ctxcopy.Manager

	logger logrus.FieldLogger

	cycle uint64
	stats Stats
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewCore creates a control core from a validated copy of cfg.
func NewCore(cfg *config.Config, opts ...Option) (*Core, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}
	cfg = cfg.Clone()

	p := predictor.New(predictor.Config{
		Entries:        cfg.PredictorEntries,
		InitialCounter: cfg.PredictorInit,
	})

	c := &Core{
		config:    cfg,
		predictor: p,
		fork: fork.New(fork.Config{
			NumCores:    cfg.NumCores,
			SplitFactor: cfg.SplitFactor,
		}, p),
		tracker: tracker.New(tracker.Config{
			NumCores: cfg.NumCores,
			Depth:    cfg.ReadSetDepth,
		}),
		validator: validator.New(),
		copier: ctxcopy.New(ctxcopy.Config{
			NumCores:     cfg.NumCores,
			NumRegisters: cfg.NumRegisters,
		}),
		logger: discardLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Config returns the core's configuration.
func (c *Core) Config() *config.Config {
	return c.config
}

// Predictor returns the history predictor.
func (c *Core) Predictor() *predictor.Predictor {
	return c.predictor
}

// Fork returns the fork controller.
func (c *Core) Fork() *fork.Controller {
	return c.fork
}

// Tracker returns the memory conflict tracker.
func (c *Core) Tracker() *tracker.Tracker {
	return c.tracker
}

// Validator returns the validator.
func (c *Core) Validator() *validator.Validator {
	return c.validator
}

// ContextManager returns the context manager.
func (c *Core) ContextManager() *ctxcopy.Manager {
	return c.copier
}

// Cycle returns the number of ticks simulated.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// TaskActive reports whether a speculative task is in flight.
func (c *Core) TaskActive() bool {
	return c.fork.TaskActive()
}

// Task returns the in-flight task.
func (c *Core) Task() fork.Task {
	return c.fork.Task()
}

// Stats returns statistics for the control core.
func (c *Core) Stats() Stats {
	return c.stats
}

// SimTime returns the simulated time in seconds.
func (c *Core) SimTime() float64 {
	return float64(c.cycle) * c.config.CycleTime()
}

// Tick evaluates one global tick and commits all state.
func (c *Core) Tick(in Inputs) Outputs {
	taskActive := c.fork.TaskActive()
	task := c.fork.Task()

	tr := c.tracker.Eval(tracker.Inputs{
		TaskActive: taskActive,
		SpecCore:   task.Spec,
		Mem:        in.Mem,
	})

	// The speculative core has not started until the copy completes, so
	// its done line is not a completion.
	specDone := in.SpecDone
	if c.fork.State() == fork.StateContextCopy {
		specDone = nil
	}

	vo := c.validator.Eval(validator.Inputs{
		TaskActive: taskActive,
		SpecCore:   task.Spec,
		Violation:  tr.Violation,
		MasterDone: in.MasterDone,
		SpecDone:   specDone,
		Exception:  in.Exception,
	})
	verdict := vo.Verdict

	copyDone := c.copier.Done() && !verdict.SquashFor(c.copier.Target())

	fo := c.fork.Eval(fork.Inputs{
		Block:    in.Block,
		Tier:     in.Tier,
		Busy:     in.Busy,
		CopyDone: copyDone,
		Verdict:  verdict,
	})

	co := c.copier.Eval(ctxcopy.Inputs{
		Start:   fo.CopyStart,
		Target:  fo.CopyTarget,
		Verdict: verdict,
		DataIn:  in.CopyDataIn,
	})

	c.tracker.ApplyVerdict(verdict)

	out := Outputs{
		Dispatch:  fo.Dispatch,
		Spec:      fo.Spec,
		Copy:      bus.CopyControl{Start: fo.CopyStart, Done: co.Done},
		CopyBus:   co.Bus,
		Verdict:   verdict,
		Violation: tr.Violation,
		Decision:  fo.Decision,
		Task:      fo.Task,
	}

	c.account(out, vo, co)
	c.log(in.Block, out, tr, vo, co)

	c.tracker.Commit()
	c.validator.Commit()
	c.fork.Commit()
	c.copier.Commit()
	c.cycle++

	return out
}

func (c *Core) account(out Outputs, vo validator.Outputs, co ctxcopy.Outputs) {
	c.stats.Cycles++

	switch out.Decision {
	case fork.DecisionFork:
		c.stats.Forks++
	case fork.DecisionSplit:
		c.stats.SplitDispatches++
	case fork.DecisionDropped:
		c.stats.DroppedBlocks++
	case fork.DecisionPredictedFailure:
		c.stats.PredictorDeclines++
	case fork.DecisionNoIdleCore:
		c.stats.NoIdleCoreDeclines++
	case fork.DecisionNoTrigger:
		c.stats.NoTriggerBlocks++
	case fork.DecisionSerial:
		c.stats.SerialBlocks++
	case fork.DecisionBusy:
		c.stats.BusyBlocks++
	}

	if out.Violation {
		c.stats.Violations++
	}

	switch out.Verdict.Verdict {
	case bus.Commit:
		c.stats.Commits++
	case bus.Squash:
		c.stats.Squashes++
		if vo.Exception {
			c.stats.SpecExceptions++
		}
	}

	if co.Aborted {
		c.stats.CopyAborts++
	}
	if vo.Cancelled {
		c.stats.Cancellations++
	}
}

func (c *Core) log(
	block bus.Block,
	out Outputs,
	tr tracker.Result,
	vo validator.Outputs,
	co ctxcopy.Outputs,
) {
	entry := c.logger.WithField("cycle", c.cycle)

	switch out.Decision {
	case fork.DecisionFork:
		entry.WithFields(logrus.Fields{
			"core":   out.Task.Spec,
			"pc":     fmt.Sprintf("%#x", out.Task.TriggerPC),
			"target": fmt.Sprintf("%#x", out.Task.TargetPC),
		}).Debug("fork")
	case fork.DecisionSplit, fork.DecisionDropped,
		fork.DecisionPredictedFailure, fork.DecisionNoIdleCore:
		entry.WithFields(logrus.Fields{
			"decision": out.Decision,
			"pc":       fmt.Sprintf("%#x", block.PC),
		}).Debug("block")
	}

	if out.Spec.Start {
		entry.WithFields(logrus.Fields{
			"core": out.Spec.CoreID,
			"pc":   fmt.Sprintf("%#x", out.Spec.PC),
		}).Debug("speculative start")
	}

	if tr.Violation {
		entry.WithFields(logrus.Fields{
			"core": out.Task.Spec,
			"addr": fmt.Sprintf("%#x", tr.ConflictAddr),
		}).Debug("violation")
	}

	if out.Verdict.Valid() {
		entry.WithFields(logrus.Fields{
			"core":      out.Verdict.Core,
			"verdict":   out.Verdict.Verdict,
			"exception": vo.Exception,
		}).Debug("verdict")
	}

	if co.Aborted {
		entry.WithField("core", out.Task.Spec).Debug("context copy aborted")
	}
	if vo.Cancelled {
		entry.Debug("task cancelled")
	}
}

// Reset returns every component to its power-on state, including the
// predictor table, and clears statistics.
func (c *Core) Reset() {
	c.predictor.Reset()
	c.fork.Reset()
	c.tracker.Reset()
	c.validator.Reset()
	c.copier.Reset()
	c.cycle = 0
	c.stats = Stats{}
}
