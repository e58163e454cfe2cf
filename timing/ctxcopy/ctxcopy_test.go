package ctxcopy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/forksim/timing/bus"
	"github.com/sarchlab/forksim/timing/ctxcopy"
)

var _ = Describe("Context Manager", func() {
	const (
		numCores = 4
		numRegs  = 4
		target   = bus.CoreID(2)
	)

	var (
		m      *ctxcopy.Manager
		master []uint64
		worker []uint64
		dataIn uint64
	)

	BeforeEach(func() {
		m = ctxcopy.New(ctxcopy.Config{NumCores: numCores, NumRegisters: numRegs})
		master = []uint64{0, 11, 22, 33}
		worker = make([]uint64, numRegs)
		dataIn = 0
	})

	// tick evaluates one cycle and services the bus like a register file.
	tick := func(in ctxcopy.Inputs) ctxcopy.Outputs {
		in.DataIn = dataIn
		out := m.Eval(in)
		m.Commit()

		if bus.Bit(out.Bus.WriteEnable, target) {
			worker[out.Bus.WriteAddr] = out.Bus.DataOut
		}
		if out.Bus.ReadEnable {
			dataIn = master[out.Bus.ReadAddr]
		}
		return out
	}

	It("should stay idle without copy-start", func() {
		out := tick(ctxcopy.Inputs{})

		Expect(out.Done).To(BeFalse())
		Expect(out.Bus.ReadEnable).To(BeFalse())
		Expect(m.State()).To(Equal(ctxcopy.StateIdle))
		Expect(m.Target()).To(Equal(bus.NoCore))
	})

	It("should copy every register and then assert done for one tick", func() {
		tick(ctxcopy.Inputs{Start: true, Target: target})
		Expect(m.State()).To(Equal(ctxcopy.StateCopying))
		Expect(m.Target()).To(Equal(target))

		doneTicks := 0
		ticks := 0
		for ; ticks < 20; ticks++ {
			out := tick(ctxcopy.Inputs{Verdict: bus.None()})
			if out.Done {
				doneTicks++
			}
			if m.State() == ctxcopy.StateIdle {
				break
			}
		}

		Expect(worker).To(Equal(master))
		Expect(doneTicks).To(Equal(1))
		// R+1 copying ticks followed by one done tick.
		Expect(ticks + 1).To(Equal(numRegs + 2))
		Expect(m.Stats().RegistersMoved).To(Equal(uint64(numRegs)))
	})

	It("should only write to the target core", func() {
		tick(ctxcopy.Inputs{Start: true, Target: target})
		tick(ctxcopy.Inputs{})
		out := tick(ctxcopy.Inputs{})

		Expect(out.Bus.WriteEnable).To(HaveLen(numCores))
		Expect(out.Bus.WriteEnable[target]).To(BeTrue())
		Expect(out.Bus.WriteEnable[1]).To(BeFalse())
		Expect(out.Bus.WriteEnable[bus.MasterCore]).To(BeFalse())
	})

	It("should abort on a squash for the target without asserting done", func() {
		tick(ctxcopy.Inputs{Start: true, Target: target})
		tick(ctxcopy.Inputs{})
		tick(ctxcopy.Inputs{})

		out := tick(ctxcopy.Inputs{Verdict: bus.VerdictSignal{Core: target, Verdict: bus.Squash}})
		Expect(out.Aborted).To(BeTrue())
		Expect(out.Bus.Writes()).To(BeFalse())
		Expect(out.Done).To(BeFalse())
		Expect(m.State()).To(Equal(ctxcopy.StateIdle))

		for i := 0; i < 10; i++ {
			out = tick(ctxcopy.Inputs{})
			Expect(out.Done).To(BeFalse())
			Expect(out.Bus.Writes()).To(BeFalse())
		}
		Expect(m.Stats().Aborts).To(Equal(uint64(1)))
	})

	It("should ignore a squash for a different core", func() {
		tick(ctxcopy.Inputs{Start: true, Target: target})

		out := tick(ctxcopy.Inputs{Verdict: bus.VerdictSignal{Core: 1, Verdict: bus.Squash}})
		Expect(out.Aborted).To(BeFalse())
		Expect(m.State()).To(Equal(ctxcopy.StateCopying))
	})

	It("should reject the master as a copy target", func() {
		tick(ctxcopy.Inputs{Start: true, Target: bus.MasterCore})
		Expect(m.State()).To(Equal(ctxcopy.StateIdle))
	})

	It("should ignore copy-start while a copy is in progress", func() {
		tick(ctxcopy.Inputs{Start: true, Target: target})
		tick(ctxcopy.Inputs{Start: true, Target: 3})

		Expect(m.Target()).To(Equal(target))
		Expect(m.Stats().Copies).To(Equal(uint64(1)))
	})
})
