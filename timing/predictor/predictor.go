// Package predictor provides the history predictor that guards speculative
// forks: a table of 2-bit saturating confidence counters indexed by a
// truncated program counter.
package predictor

// MaxCounter is the saturation value of a confidence counter.
const MaxCounter uint8 = 3

// Config holds configuration for the history predictor.
type Config struct {
	// Entries is the number of counters in the table.
	// Must be a power of 2. Default is 1024.
	Entries uint32
	// InitialCounter is the value every counter starts at (0-3).
	// Default is 2 (weakly predict success).
	InitialCounter uint8
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Entries:        1024,
		InitialCounter: 2,
	}
}

// Stats holds statistics for the history predictor.
type Stats struct {
	// Lookups is the number of fork-trigger predictions made.
	Lookups uint64
	// PredictedFailure is the number of lookups that declined a fork.
	PredictedFailure uint64
	// Successes is the number of success updates (commits).
	Successes uint64
	// Failures is the number of failure updates (squashes).
	Failures uint64
}

// DeclineRate returns the percentage of lookups that predicted failure.
func (s Stats) DeclineRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.PredictedFailure) / float64(s.Lookups) * 100
}

// SuccessRate returns the percentage of updates that were successes.
func (s Stats) SuccessRate() float64 {
	total := s.Successes + s.Failures
	if total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(total) * 100
}

// Predictor implements the per-PC 2-bit saturating counter table.
type Predictor struct {
	// States: 0=Strongly Fail, 1=Weakly Fail,
	//         2=Weakly Succeed, 3=Strongly Succeed
	counters []uint8

	entries uint32
	initial uint8

	stats Stats
}

// New creates a new predictor with the given configuration.
func New(config Config) *Predictor {
	entries := config.Entries
	if entries == 0 {
		entries = 1024
	}
	entries = roundUpPow2(entries)

	initial := config.InitialCounter
	if initial > MaxCounter {
		initial = MaxCounter
	}

	p := &Predictor{
		counters: make([]uint8, entries),
		entries:  entries,
		initial:  initial,
	}
	p.fill()

	return p
}

func roundUpPow2(n uint32) uint32 {
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (p *Predictor) fill() {
	for i := range p.counters {
		p.counters[i] = p.initial
	}
}

// index computes the table index for a given PC.
func (p *Predictor) index(pc uint64) uint32 {
	// Drop the instruction alignment bits
	return uint32((pc >> 2) & uint64(p.entries-1))
}

// Entries returns the table size.
func (p *Predictor) Entries() uint32 {
	return p.entries
}

// Counter returns the confidence counter for pc.
func (p *Predictor) Counter(pc uint64) uint8 {
	return p.counters[p.index(pc)]
}

// SetCounter presets the counter for pc, clamping to [0,3].
func (p *Predictor) SetCounter(pc uint64, value uint8) {
	if value > MaxCounter {
		value = MaxCounter
	}
	p.counters[p.index(pc)] = value
}

// PredictFailure reports whether forking at pc is predicted to fail.
// The prediction is the counter's high bit: counters 0 and 1 predict
// failure.
func (p *Predictor) PredictFailure(pc uint64) bool {
	p.stats.Lookups++
	fail := p.Counter(pc)>>1 == 0
	if fail {
		p.stats.PredictedFailure++
	}
	return fail
}

// Update trains the counter for pc with a task outcome.
func (p *Predictor) Update(pc uint64, success bool) {
	idx := p.index(pc)
	counter := p.counters[idx]

	if success {
		p.stats.Successes++
		if counter < MaxCounter {
			p.counters[idx] = counter + 1
		}
	} else {
		p.stats.Failures++
		if counter > 0 {
			p.counters[idx] = counter - 1
		}
	}
}

// Stats returns the predictor statistics.
func (p *Predictor) Stats() Stats {
	return p.stats
}

// Reset restores every counter to its initial value and clears statistics.
func (p *Predictor) Reset() {
	p.fill()
	p.stats = Stats{}
}
