package trace

import (
	"path/filepath"

	"github.com/sarchlab/forksim/loader"
)

// DefaultAutoComplete is the speculative window assumed for program
// streams, in ticks.
const DefaultAutoComplete = 8

// FromProgram builds a scenario that fetches every block of a program's
// executable segments once, in address order, and lets both cores finish
// each speculative task after DefaultAutoComplete ticks.
func FromProgram(name string, prog *loader.Program, blockSize int) *Scenario {
	s := &Scenario{
		Name:         filepath.Base(name),
		AutoComplete: DefaultAutoComplete,
	}

	for _, b := range prog.Blocks(blockSize) {
		s.Steps = append(s.Steps, Step{
			Block: &BlockSpec{PC: b.PC, Insts: b.Insts},
		})
	}
	s.Steps = append(s.Steps, Step{Until: UntilIdle})

	return s
}
