package trace

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/forksim/config"
	"github.com/sarchlab/forksim/emu"
	"github.com/sarchlab/forksim/timing/bus"
	"github.com/sarchlab/forksim/timing/core"
	"github.com/sarchlab/forksim/timing/fork"
)

// DefaultMaxWait bounds how many ticks a step may wait for its condition.
const DefaultMaxWait = 10000

// EventKind names a notable tick outcome.
type EventKind string

// Event kinds.
const (
	EventFork      EventKind = "fork"
	EventSplit     EventKind = "split"
	EventDropped   EventKind = "dropped"
	EventDeclined  EventKind = "declined"
	EventSpecStart EventKind = "spec-start"
	EventViolation EventKind = "violation"
	EventCommit    EventKind = "commit"
	EventSquash    EventKind = "squash"
)

// Event is a notable outcome of one tick.
type Event struct {
	Cycle uint64
	Kind  EventKind
	Core  bus.CoreID
	PC    uint64
	// Cores lists the workers that received a split dispatch.
	Cores []bus.CoreID
}

// String formats the event for reports.
func (e Event) String() string {
	switch e.Kind {
	case EventSplit:
		return fmt.Sprintf("%6d %-10s pc=%#x cores=%v", e.Cycle, e.Kind, e.PC, e.Cores)
	case EventDropped, EventDeclined:
		return fmt.Sprintf("%6d %-10s pc=%#x", e.Cycle, e.Kind, e.PC)
	default:
		return fmt.Sprintf("%6d %-10s core=%d pc=%#x", e.Cycle, e.Kind, e.Core, e.PC)
	}
}

// Result is the outcome of one scenario run.
type Result struct {
	Name   string
	Stats  core.Stats
	Events []Event

	// SimTime is the simulated time in seconds.
	SimTime float64

	// Counters holds final predictor counters for every PC the scenario
	// seeds or checks.
	Counters map[uint64]uint8
	// Synced and ReadSetLens are indexed by worker CoreID.
	Synced      map[int]bool
	ReadSetLens map[int]int

	// Failures lists unmet expectations.
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger passed to the core and used for run summaries.
func WithLogger(logger logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMaxWait sets how many ticks a step may wait for its condition.
func WithMaxWait(ticks int) RunnerOption {
	return func(r *Runner) {
		r.maxWait = ticks
	}
}

// Runner drives one control core and its register bank through scenarios.
type Runner struct {
	base    *config.Config
	logger  logrus.FieldLogger
	maxWait int
}

// NewRunner creates a runner whose scenarios start from base.
func NewRunner(base *config.Config, opts ...RunnerOption) (*Runner, error) {
	if base == nil {
		base = config.DefaultConfig()
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base config: %w", err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)

	r := &Runner{
		base:    base.Clone(),
		logger:  l,
		maxWait: DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// session is the state of one scenario run.
type session struct {
	scenario *Scenario
	core     *core.Core
	bank     *emu.RegBank
	result   *Result

	// autoAt is the cycle at which auto-completion asserts master-done;
	// zero when no completion is pending.
	autoAt uint64
}

// Run executes a scenario on a fresh core and checks its expectations.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.ResolveConfig(r.base)
	if err != nil {
		return nil, err
	}

	logger := r.logger.WithField("scenario", s.Name)
	c, err := core.NewCore(cfg, core.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ss := &session{
		scenario: s,
		core:     c,
		bank:     emu.NewRegBank(cfg.NumCores, cfg.NumRegisters),
		result:   &Result{Name: s.Name},
	}

	for i, v := range s.Registers {
		ss.bank.Master().WriteReg(i, v)
	}
	for _, p := range s.Predictor {
		c.Predictor().SetCounter(p.PC, p.Counter)
	}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.runStep(ss, i, step); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}

	ss.finish()

	logger.WithFields(logrus.Fields{
		"cycles":   ss.result.Stats.Cycles,
		"forks":    ss.result.Stats.Forks,
		"commits":  ss.result.Stats.Commits,
		"squashes": ss.result.Stats.Squashes,
		"passed":   ss.result.Passed(),
	}).Info("scenario finished")

	return ss.result, nil
}

func (r *Runner) runStep(ss *session, index int, step Step) error {
	n := step.Repeat
	if n < 1 {
		n = 1
	}

	var out core.Outputs
	for i := 0; i < n; i++ {
		in := ss.inputs(step)
		if i == 0 {
			if err := fetch(&in, step); err != nil {
				return fmt.Errorf("step %d: %w", index, err)
			}
		}
		out = ss.tick(in)
	}

	if step.Until == "" {
		return nil
	}

	for waited := 0; !ss.reached(step.Until, out); waited++ {
		if waited >= r.maxWait {
			return fmt.Errorf("step %d: %s not reached within %d ticks",
				index, step.Until, r.maxWait)
		}
		out = ss.tick(ss.inputs(step))
	}

	return nil
}

func (ss *session) reached(until string, out core.Outputs) bool {
	switch until {
	case UntilSpecStart:
		return out.Spec.Start
	case UntilVerdict:
		return out.Verdict.Valid()
	case UntilIdle:
		return !ss.core.TaskActive()
	default:
		return true
	}
}

func bits(n int, ids []int) []bool {
	b := make([]bool, n)
	for _, id := range ids {
		if id >= 0 && id < n {
			b[id] = true
		}
	}
	return b
}

// inputs builds the held signals of a step for one tick.
func (ss *session) inputs(step Step) core.Inputs {
	n := ss.core.Config().NumCores

	in := core.Inputs{
		Busy:       bits(n, step.Busy),
		Mem:        make([]bus.MemAccess, n),
		MasterDone: step.MasterDone,
		SpecDone:   bits(n, step.SpecDone),
		Exception:  bits(n, step.Exceptions),
		CopyDataIn: ss.bank.DataIn(),
	}

	for id, addr := range step.Loads {
		if id >= 0 && id < n {
			in.Mem[id] = bus.MemAccess{Addr: addr, Valid: true}
		}
	}
	for id, addr := range step.Stores {
		if id >= 0 && id < n {
			in.Mem[id] = bus.MemAccess{Addr: addr, IsStore: true, Valid: true}
		}
	}

	ss.autoComplete(&in)

	return in
}

// fetch presents the step's block with its tier.
func fetch(in *core.Inputs, step Step) error {
	if step.Block == nil {
		return nil
	}

	tier, err := step.Block.Classify()
	if err != nil {
		return err
	}
	in.Block = step.Block.Block()
	in.Tier = tier
	return nil
}

// autoComplete plays the part of both cores finishing their work after a
// fixed delay.
func (ss *session) autoComplete(in *core.Inputs) {
	if ss.autoAt == 0 || !ss.core.TaskActive() {
		return
	}

	cycle := ss.core.Cycle()
	switch {
	case cycle == ss.autoAt:
		in.MasterDone = true
	case cycle == ss.autoAt+1:
		if spec := ss.core.Task().Spec; spec.IsWorker(len(in.SpecDone)) {
			in.SpecDone[spec] = true
		}
		ss.autoAt = 0
	}
}

func (ss *session) tick(in core.Inputs) core.Outputs {
	cycle := ss.core.Cycle()
	out := ss.core.Tick(in)
	ss.bank.Service(out.CopyBus)

	if out.Spec.Start && ss.scenario.AutoComplete > 0 {
		ss.autoAt = cycle + uint64(ss.scenario.AutoComplete)
	}
	if out.Verdict.Valid() {
		ss.autoAt = 0
	}

	ss.record(cycle, in, out)
	return out
}

func (ss *session) record(cycle uint64, in core.Inputs, out core.Outputs) {
	add := func(e Event) {
		e.Cycle = cycle
		ss.result.Events = append(ss.result.Events, e)
	}

	switch out.Decision {
	case fork.DecisionFork:
		add(Event{Kind: EventFork, Core: out.Task.Spec, PC: out.Task.TriggerPC})
	case fork.DecisionSplit:
		e := Event{Kind: EventSplit, Core: bus.NoCore, PC: in.Block.PC}
		for id, d := range out.Dispatch {
			if d.Valid {
				e.Cores = append(e.Cores, bus.CoreID(id))
			}
		}
		add(e)
	case fork.DecisionDropped:
		add(Event{Kind: EventDropped, Core: bus.NoCore, PC: in.Block.PC})
	case fork.DecisionPredictedFailure:
		add(Event{Kind: EventDeclined, Core: bus.NoCore, PC: in.Block.PC})
	}

	if out.Spec.Start {
		add(Event{Kind: EventSpecStart, Core: out.Spec.CoreID, PC: out.Spec.PC})
	}
	if out.Violation {
		add(Event{Kind: EventViolation, Core: out.Task.Spec, PC: out.Task.TriggerPC})
	}

	switch out.Verdict.Verdict {
	case bus.Commit:
		add(Event{Kind: EventCommit, Core: out.Verdict.Core, PC: out.Task.TriggerPC})
	case bus.Squash:
		add(Event{Kind: EventSquash, Core: out.Verdict.Core, PC: out.Task.TriggerPC})
	}
}

func (ss *session) finish() {
	r := ss.result
	c := ss.core

	r.Stats = c.Stats()
	r.SimTime = c.SimTime()

	r.Counters = map[uint64]uint8{}
	for _, p := range ss.scenario.Predictor {
		r.Counters[p.PC] = c.Predictor().Counter(p.PC)
	}
	for _, p := range ss.scenario.Expect.Predictor {
		r.Counters[p.PC] = c.Predictor().Counter(p.PC)
	}

	r.Synced = map[int]bool{}
	r.ReadSetLens = map[int]int{}
	for id := 1; id < c.Config().NumCores; id++ {
		r.Synced[id] = ss.bank.Synced(bus.CoreID(id))
		r.ReadSetLens[id] = c.Tracker().ReadSet(bus.CoreID(id)).Len()
	}

	r.Failures = ss.scenario.Expect.Check(r)
}
