package trace

import (
	"github.com/sarchlab/forksim/insts"
)

const (
	loopPC     = 0x1000
	sharedAddr = 0x8000
)

// loopBody is a counting loop that loads, updates and stores a shared
// word, then branches back to 0xfe0.
func loopBody() []uint32 {
	return []uint32{
		insts.EncodeLoad(5, 10, 0),
		insts.EncodeADDI(5, 5, 1),
		insts.EncodeStore(10, 5, 0),
		insts.EncodeBranch(insts.Funct3BNE, 5, 6, -0x2c),
	}
}

func seedRegisters() []uint64 {
	regs := make([]uint64, 32)
	for i := range regs {
		regs[i] = uint64(i) * 0x1111
	}
	return regs
}

// Builtin returns the reference end-to-end scenarios.
func Builtin() []*Scenario {
	return []*Scenario{
		bypassScenario(),
		splitScenario(),
		commitScenario(),
		squashScenario(),
	}
}

func bypassScenario() *Scenario {
	return &Scenario{
		Name:        "A-bypass",
		Description: "a bypass-tier block is left to serial execution",
		Steps: []Step{
			{Block: &BlockSpec{
				PC:    0x3000,
				Insts: []uint32{insts.EncodeADDI(1, 1, 1), insts.EncodeFence()},
			}},
			{Repeat: 2},
		},
		Expect: Expectation{
			Serial: Count(1),
			Forks:  Count(0),
			Splits: Count(0),
		},
	}
}

func splitScenario() *Scenario {
	return &Scenario{
		Name:        "B-split",
		Description: "a conservative block is interleaved across workers 1 and 2",
		Steps: []Step{
			{
				Block: &BlockSpec{
					PC: 0x2000,
					Insts: []uint32{
						insts.EncodeADDI(1, 1, 1),
						insts.EncodeADDI(2, 2, 2),
						insts.EncodeLoad(3, 10, 0),
						insts.EncodeADDI(4, 4, 4),
					},
				},
				Busy:  []int{3},
				Loads: map[int]uint64{1: sharedAddr},
			},
		},
		Expect: Expectation{
			Splits:        Count(1),
			Forks:         Count(0),
			EmptyReadSets: []int{1, 2, 3},
		},
	}
}

func commitScenario() *Scenario {
	return &Scenario{
		Name:        "C-commit",
		Description: "an optimistic fork on core 3 copies, speculates and commits",
		Registers:   seedRegisters(),
		Predictor:   []CounterSetting{{PC: loopPC, Counter: 3}},
		Steps: []Step{
			{
				Block: &BlockSpec{PC: loopPC, Insts: loopBody()},
				Busy:  []int{1, 2},
				Until: UntilSpecStart,
			},
			{Loads: map[int]uint64{3: sharedAddr}},
			{MasterDone: true},
			{SpecDone: []int{3}},
		},
		Expect: Expectation{
			Forks:     Count(1),
			Commits:   Count(1),
			Squashes:  Count(0),
			Predictor: []CounterSetting{{PC: loopPC, Counter: 3}},
			Synced:    []int{3},
		},
	}
}

func squashScenario() *Scenario {
	return &Scenario{
		Name:        "D-squash",
		Description: "a master store to an address read speculatively squashes the task",
		Registers:   seedRegisters(),
		Predictor:   []CounterSetting{{PC: loopPC, Counter: 3}},
		Steps: []Step{
			{
				Block: &BlockSpec{PC: loopPC, Insts: loopBody()},
				Busy:  []int{1, 2},
				Until: UntilSpecStart,
			},
			{Loads: map[int]uint64{3: sharedAddr}},
			{Stores: map[int]uint64{0: sharedAddr}},
			{SpecDone: []int{3}},
		},
		Expect: Expectation{
			Forks:         Count(1),
			Commits:       Count(0),
			Squashes:      Count(1),
			Violations:    Count(1),
			Predictor:     []CounterSetting{{PC: loopPC, Counter: 2}},
			EmptyReadSets: []int{3},
		},
	}
}
