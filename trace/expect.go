package trace

import "fmt"

// Expectation is the outcome a scenario must produce. Unset counts are not
// checked.
type Expectation struct {
	Forks      *uint64 `yaml:"forks,omitempty"`
	Commits    *uint64 `yaml:"commits,omitempty"`
	Squashes   *uint64 `yaml:"squashes,omitempty"`
	Violations *uint64 `yaml:"violations,omitempty"`
	Splits     *uint64 `yaml:"splits,omitempty"`
	Dropped    *uint64 `yaml:"dropped,omitempty"`
	Serial     *uint64 `yaml:"serial,omitempty"`
	Declines   *uint64 `yaml:"declines,omitempty"`

	// Predictor lists final counter values.
	Predictor []CounterSetting `yaml:"predictor,omitempty"`
	// Synced lists cores whose registers must match the master's.
	Synced []int `yaml:"synced,omitempty"`
	// EmptyReadSets lists workers whose read-set must be empty at the end.
	EmptyReadSets []int `yaml:"empty_readsets,omitempty"`
}

// Count returns a pointer to n, for building expectations in code.
func Count(n uint64) *uint64 {
	return &n
}

func checkCount(failures []string, name string, want *uint64, got uint64) []string {
	if want != nil && *want != got {
		failures = append(failures, fmt.Sprintf("%s: expected %d, got %d", name, *want, got))
	}
	return failures
}

// Check compares the expectation against a finished run and returns one
// message per mismatch.
func (e *Expectation) Check(r *Result) []string {
	var failures []string
	stats := r.Stats

	failures = checkCount(failures, "forks", e.Forks, stats.Forks)
	failures = checkCount(failures, "commits", e.Commits, stats.Commits)
	failures = checkCount(failures, "squashes", e.Squashes, stats.Squashes)
	failures = checkCount(failures, "violations", e.Violations, stats.Violations)
	failures = checkCount(failures, "splits", e.Splits, stats.SplitDispatches)
	failures = checkCount(failures, "dropped", e.Dropped, stats.DroppedBlocks)
	failures = checkCount(failures, "serial", e.Serial, stats.SerialBlocks)
	failures = checkCount(failures, "declines", e.Declines, stats.PredictorDeclines)

	for _, p := range e.Predictor {
		got, ok := r.Counters[p.PC]
		if !ok || got != p.Counter {
			failures = append(failures,
				fmt.Sprintf("predictor[%#x]: expected %d, got %d", p.PC, p.Counter, got))
		}
	}

	for _, id := range e.Synced {
		if !r.Synced[id] {
			failures = append(failures, fmt.Sprintf("core %d: registers differ from master", id))
		}
	}

	for _, id := range e.EmptyReadSets {
		if n := r.ReadSetLens[id]; n != 0 {
			failures = append(failures, fmt.Sprintf("core %d: read-set holds %d entries", id, n))
		}
	}

	return failures
}
