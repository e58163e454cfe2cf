package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/forksim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Conditional branches", func() {
		It("should decode beq x0, x0, -8", func() {
			inst := decoder.Decode(0xfe000ce3)

			Expect(inst.Opcode).To(Equal(insts.OpcodeBranch))
			Expect(inst.Class).To(Equal(insts.ClassBranch))
			Expect(inst.Funct3).To(Equal(insts.Funct3BEQ))
			Expect(inst.Imm).To(Equal(int64(-8)))
			Expect(inst.IsPCRelative()).To(BeTrue())
		})

		It("should decode a forward branch with registers", func() {
			// bne x5, x6, +16
			inst := decoder.Decode(insts.EncodeBranch(insts.Funct3BNE, 5, 6, 16))

			Expect(inst.Class).To(Equal(insts.ClassBranch))
			Expect(inst.Rs1).To(Equal(uint8(5)))
			Expect(inst.Rs2).To(Equal(uint8(6)))
			Expect(inst.Imm).To(Equal(int64(16)))
		})

		It("should decode the most negative branch offset", func() {
			inst := decoder.Decode(insts.EncodeBranch(insts.Funct3BLT, 1, 2, -4096))
			Expect(inst.Imm).To(Equal(int64(-4096)))
		})

		It("should compute targets relative to the instruction address", func() {
			inst := decoder.Decode(insts.EncodeBranch(insts.Funct3BEQ, 0, 0, -32))
			Expect(inst.Target(0x100C)).To(Equal(uint64(0x0FEC)))
		})
	})

	Describe("Jumps", func() {
		It("should decode jal with a negative offset", func() {
			inst := decoder.Decode(insts.EncodeJAL(1, -2048))

			Expect(inst.Class).To(Equal(insts.ClassJump))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int64(-2048)))
			Expect(inst.IsPCRelative()).To(BeTrue())
		})

		It("should decode jal with a large positive offset", func() {
			inst := decoder.Decode(insts.EncodeJAL(0, 0x7FFFE))
			Expect(inst.Imm).To(Equal(int64(0x7FFFE)))
		})

		It("should not treat jalr as pc-relative", func() {
			inst := decoder.Decode(insts.EncodeJALR(0, 1, 0))

			Expect(inst.Class).To(Equal(insts.ClassIndirectJump))
			Expect(inst.IsPCRelative()).To(BeFalse())
			Expect(inst.Target(0x2000)).To(Equal(uint64(0x2000)))
		})
	})

	Describe("Memory instructions", func() {
		It("should decode loads with a signed immediate", func() {
			inst := decoder.Decode(insts.EncodeLoad(10, 2, -16))

			Expect(inst.Class).To(Equal(insts.ClassLoad))
			Expect(inst.Rd).To(Equal(uint8(10)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(int64(-16)))
		})

		It("should decode stores with a split immediate", func() {
			inst := decoder.Decode(insts.EncodeStore(2, 11, 40))

			Expect(inst.Class).To(Equal(insts.ClassStore))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Rs2).To(Equal(uint8(11)))
			Expect(inst.Imm).To(Equal(int64(40)))
		})

		It("should decode atomics", func() {
			inst := decoder.Decode(insts.EncodeAMOADD(5, 6, 7))
			Expect(inst.Class).To(Equal(insts.ClassAtomic))
		})
	})

	Describe("Other instructions", func() {
		It("should decode the canonical nop as ALU", func() {
			inst := decoder.Decode(insts.NOP)

			Expect(inst.Class).To(Equal(insts.ClassALU))
			Expect(inst.Imm).To(Equal(int64(0)))
		})

		It("should decode addi with a negative immediate", func() {
			inst := decoder.Decode(insts.EncodeADDI(1, 1, -1))
			Expect(inst.Imm).To(Equal(int64(-1)))
		})

		It("should decode lui immediates", func() {
			// lui x1, 0x12345
			inst := decoder.Decode(0x123450B7)

			Expect(inst.Class).To(Equal(insts.ClassALU))
			Expect(inst.Imm).To(Equal(int64(0x12345000)))
		})

		It("should decode fence and ecall", func() {
			Expect(decoder.Decode(insts.EncodeFence()).Class).To(Equal(insts.ClassFence))
			Expect(decoder.Decode(insts.EncodeECALL()).Class).To(Equal(insts.ClassSystem))
		})

		It("should mark unknown opcodes", func() {
			inst := decoder.Decode(0x00000000)
			Expect(inst.Class).To(Equal(insts.ClassUnknown))
			Expect(inst.Class.String()).To(Equal("unknown"))
		})
	})
})
