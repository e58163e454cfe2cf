package fork_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/forksim/insts"
	"github.com/sarchlab/forksim/timing/bus"
	"github.com/sarchlab/forksim/timing/fork"
	"github.com/sarchlab/forksim/timing/predictor"
)

const blockPC = uint64(0x1000)

// loopBlock ends in a branch back to 0xff0, before the block start.
func loopBlock() bus.Block {
	return bus.Block{
		PC: blockPC,
		Insts: []uint32{
			insts.EncodeADDI(1, 1, 1),
			insts.EncodeLoad(2, 3, 0),
			insts.EncodeStore(3, 2, 8),
			insts.EncodeBranch(insts.Funct3BNE, 1, 4, -0x1c),
		},
		Valid: true,
	}
}

func idle(numCores int, busy ...bus.CoreID) []bool {
	b := make([]bool, numCores)
	for _, c := range busy {
		b[c] = true
	}
	return b
}

var _ = Describe("Fork Controller", func() {
	var (
		p *predictor.Predictor
		c *fork.Controller
	)

	BeforeEach(func() {
		p = predictor.New(predictor.DefaultConfig())
		c = fork.New(fork.Config{NumCores: 4, SplitFactor: 2}, p)
	})

	tick := func(in fork.Inputs) fork.Outputs {
		if in.Busy == nil {
			in.Busy = idle(4)
		}
		out := c.Eval(in)
		c.Commit()
		return out
	}

	Context("idle", func() {
		It("should do nothing without a valid block", func() {
			out := tick(fork.Inputs{Block: bus.Block{PC: blockPC}, Tier: insts.TierOptimistic})

			Expect(out.Decision).To(Equal(fork.DecisionNone))
			Expect(c.State()).To(Equal(fork.StateIdle))
			Expect(c.TaskActive()).To(BeFalse())
		})

		It("should leave bypass blocks to serial execution", func() {
			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierBypass})

			Expect(out.Decision).To(Equal(fork.DecisionSerial))
			Expect(out.CopyStart).To(BeFalse())
			for _, d := range out.Dispatch {
				Expect(d.Valid).To(BeFalse())
			}
			Expect(c.State()).To(Equal(fork.StateIdle))
		})
	})

	Context("conservative split", func() {
		block := bus.Block{PC: 0x2000, Insts: []uint32{10, 11, 12, 13}, Valid: true}

		It("should interleave positions across the two lowest idle workers", func() {
			out := tick(fork.Inputs{Block: block, Tier: insts.TierConservative})

			Expect(out.Decision).To(Equal(fork.DecisionSplit))
			Expect(out.Dispatch[bus.MasterCore].Valid).To(BeFalse())
			Expect(out.Dispatch[1]).To(Equal(bus.Dispatch{Valid: true, Insts: []uint32{10, 12}}))
			Expect(out.Dispatch[2]).To(Equal(bus.Dispatch{Valid: true, Insts: []uint32{11, 13}}))
			Expect(out.Dispatch[3].Valid).To(BeFalse())
			Expect(c.State()).To(Equal(fork.StateIdle))
		})

		It("should skip busy workers in index order", func() {
			out := tick(fork.Inputs{Block: block, Tier: insts.TierConservative, Busy: idle(4, 1)})

			Expect(out.Dispatch[1].Valid).To(BeFalse())
			Expect(out.Dispatch[2].Insts).To(Equal([]uint32{10, 12}))
			Expect(out.Dispatch[3].Insts).To(Equal([]uint32{11, 13}))
		})

		It("should drop the block when too few workers are idle", func() {
			out := tick(fork.Inputs{Block: block, Tier: insts.TierConservative, Busy: idle(4, 1, 3)})

			Expect(out.Decision).To(Equal(fork.DecisionDropped))
			for _, d := range out.Dispatch {
				Expect(d.Valid).To(BeFalse())
			}
		})

		It("should honour a larger split factor", func() {
			c = fork.New(fork.Config{NumCores: 4, SplitFactor: 3}, p)
			five := bus.Block{PC: 0x2000, Insts: []uint32{1, 2, 3, 4, 5}, Valid: true}

			out := tick(fork.Inputs{Block: five, Tier: insts.TierConservative})
			Expect(out.Dispatch[1].Insts).To(Equal([]uint32{1, 4}))
			Expect(out.Dispatch[2].Insts).To(Equal([]uint32{2, 5}))
			Expect(out.Dispatch[3].Insts).To(Equal([]uint32{3}))
		})
	})

	Context("optimistic fork", func() {
		It("should fork on a backward branch with a favourable prediction", func() {
			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})

			Expect(out.Decision).To(Equal(fork.DecisionFork))
			Expect(out.CopyStart).To(BeTrue())
			Expect(out.CopyTarget).To(Equal(bus.CoreID(1)))
			Expect(c.State()).To(Equal(fork.StateContextCopy))
			Expect(c.TaskActive()).To(BeTrue())
			Expect(c.Task()).To(Equal(fork.Task{
				Master:    bus.MasterCore,
				Spec:      1,
				TriggerPC: blockPC,
				TargetPC:  0xff0,
			}))
		})

		It("should pick the lowest idle worker", func() {
			tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic, Busy: idle(4, 1, 2)})
			Expect(c.Task().Spec).To(Equal(bus.CoreID(3)))
		})

		It("should fork on a backward JAL", func() {
			b := bus.Block{PC: 0x3000, Insts: []uint32{insts.NOP, insts.EncodeJAL(0, -0x10)}, Valid: true}

			out := tick(fork.Inputs{Block: b, Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionFork))
			Expect(c.Task().TargetPC).To(Equal(uint64(0x2ff4)))
		})

		It("should not fork on a forward branch", func() {
			b := loopBlock()
			b.Insts[3] = insts.EncodeBranch(insts.Funct3BEQ, 1, 2, 0x40)

			out := tick(fork.Inputs{Block: b, Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionNoTrigger))
			Expect(c.State()).To(Equal(fork.StateIdle))
		})

		It("should not fork on a branch that lands inside the block", func() {
			b := loopBlock()
			b.Insts[3] = insts.EncodeBranch(insts.Funct3BNE, 1, 4, -0x8)

			out := tick(fork.Inputs{Block: b, Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionNoTrigger))
		})

		It("should not fork when the branch is not the last instruction", func() {
			b := loopBlock()
			b.Insts[3], b.Insts[0] = b.Insts[0], b.Insts[3]

			out := tick(fork.Inputs{Block: b, Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionNoTrigger))
		})

		It("should not fork on an indirect jump", func() {
			b := loopBlock()
			b.Insts[3] = insts.EncodeJALR(0, 1, -0x100)

			out := tick(fork.Inputs{Block: b, Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionNoTrigger))
		})

		It("should decline when every worker is busy", func() {
			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic, Busy: idle(4, 1, 2, 3)})

			Expect(out.Decision).To(Equal(fork.DecisionNoIdleCore))
			Expect(out.CopyStart).To(BeFalse())
		})

		It("should treat cores missing from the status bus as busy", func() {
			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic, Busy: []bool{false}})
			Expect(out.Decision).To(Equal(fork.DecisionNoIdleCore))
		})

		It("should decline when the predictor predicts failure", func() {
			p.SetCounter(blockPC, 1)

			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionPredictedFailure))
			Expect(c.State()).To(Equal(fork.StateIdle))
			Expect(p.Counter(blockPC)).To(Equal(uint8(1)))
		})
	})

	Context("with a task in flight", func() {
		squash := bus.VerdictSignal{Core: 1, Verdict: bus.Squash}
		commit := bus.VerdictSignal{Core: 1, Verdict: bus.Commit}

		BeforeEach(func() {
			p.SetCounter(blockPC, 3)
			tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})
			Expect(c.State()).To(Equal(fork.StateContextCopy))
		})

		It("should hold task-active while waiting for the copy", func() {
			out := tick(fork.Inputs{Verdict: bus.None()})

			Expect(out.Spec.TaskActive).To(BeTrue())
			Expect(out.Spec.Start).To(BeFalse())
			Expect(c.State()).To(Equal(fork.StateContextCopy))
		})

		It("should not examine new blocks", func() {
			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})

			Expect(out.Decision).To(Equal(fork.DecisionBusy))
			Expect(out.CopyStart).To(BeFalse())
			Expect(c.Task().Spec).To(Equal(bus.CoreID(1)))
		})

		It("should start the worker at the target once the copy is done", func() {
			out := tick(fork.Inputs{CopyDone: true})

			Expect(out.Spec).To(Equal(bus.SpecStart{CoreID: 1, PC: 0xff0, Start: true, TaskActive: true}))
			Expect(c.State()).To(Equal(fork.StateSpecActive))

			out = tick(fork.Inputs{})
			Expect(out.Spec.Start).To(BeFalse())
			Expect(out.Spec.TaskActive).To(BeTrue())
		})

		It("should abort the copy on a squash and record a failure", func() {
			out := tick(fork.Inputs{Verdict: squash})

			Expect(out.Ended).To(BeTrue())
			Expect(out.Update).To(Equal(&fork.Update{PC: blockPC, Success: false}))
			Expect(c.State()).To(Equal(fork.StateIdle))
			Expect(c.TaskActive()).To(BeFalse())
			Expect(p.Counter(blockPC)).To(Equal(uint8(2)))
		})

		It("should let a squash win over copy-done", func() {
			out := tick(fork.Inputs{CopyDone: true, Verdict: squash})

			Expect(out.Spec.Start).To(BeFalse())
			Expect(c.State()).To(Equal(fork.StateIdle))
		})

		It("should ignore verdicts for other cores", func() {
			tick(fork.Inputs{Verdict: bus.VerdictSignal{Core: 2, Verdict: bus.Squash}})
			Expect(c.State()).To(Equal(fork.StateContextCopy))
		})

		It("should return to idle on commit and record a success", func() {
			p.SetCounter(blockPC, 2)
			tick(fork.Inputs{CopyDone: true})

			out := tick(fork.Inputs{Verdict: commit})
			Expect(out.Verdict).To(Equal(bus.Commit))
			Expect(c.State()).To(Equal(fork.StateIdle))
			Expect(p.Counter(blockPC)).To(Equal(uint8(3)))
		})

		It("should saturate the counter on commit", func() {
			tick(fork.Inputs{CopyDone: true})
			tick(fork.Inputs{Verdict: commit})

			Expect(p.Counter(blockPC)).To(Equal(uint8(3)))
		})

		It("should return to idle on squash during speculation", func() {
			tick(fork.Inputs{CopyDone: true})

			out := tick(fork.Inputs{Verdict: squash})
			Expect(out.Verdict).To(Equal(bus.Squash))
			Expect(c.State()).To(Equal(fork.StateIdle))
			Expect(p.Counter(blockPC)).To(Equal(uint8(2)))
		})

		It("should admit a new task after the verdict", func() {
			tick(fork.Inputs{CopyDone: true})
			tick(fork.Inputs{Verdict: commit})

			out := tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})
			Expect(out.Decision).To(Equal(fork.DecisionFork))
		})

		It("should apply the predictor update only at commit time", func() {
			tick(fork.Inputs{CopyDone: true})
			p.SetCounter(blockPC, 1)

			out := c.Eval(fork.Inputs{Verdict: squash})
			Expect(out.Update).NotTo(BeNil())
			Expect(p.Counter(blockPC)).To(Equal(uint8(1)))

			c.Commit()
			Expect(p.Counter(blockPC)).To(Equal(uint8(0)))
		})
	})

	It("should reset to idle without touching the predictor", func() {
		p.SetCounter(blockPC, 3)
		tick(fork.Inputs{Block: loopBlock(), Tier: insts.TierOptimistic})

		c.Reset()
		Expect(c.State()).To(Equal(fork.StateIdle))
		Expect(c.Task().Spec).To(Equal(bus.NoCore))
		Expect(p.Counter(blockPC)).To(Equal(uint8(3)))
	})

	It("should name its decisions", func() {
		Expect(fork.DecisionPredictedFailure.String()).To(Equal("predicted-failure"))
		Expect(fork.StateSpecActive.String()).To(Equal("spec-active"))
	})
})
