package insts

// Opcode is the 7-bit RISC-V major opcode, bits [6:0].
type Opcode uint8

// RISC-V major opcodes.
const (
	OpcodeLoad    Opcode = 0b0000011
	OpcodeLoadFP  Opcode = 0b0000111
	OpcodeMiscMem Opcode = 0b0001111 // FENCE, FENCE.I
	OpcodeOpImm   Opcode = 0b0010011
	OpcodeAUIPC   Opcode = 0b0010111
	OpcodeOpImm32 Opcode = 0b0011011
	OpcodeStore   Opcode = 0b0100011
	OpcodeStoreFP Opcode = 0b0100111
	OpcodeAMO     Opcode = 0b0101111
	OpcodeOp      Opcode = 0b0110011
	OpcodeLUI     Opcode = 0b0110111
	OpcodeOp32    Opcode = 0b0111011
	OpcodeBranch  Opcode = 0b1100011
	OpcodeJALR    Opcode = 0b1100111
	OpcodeJAL     Opcode = 0b1101111
	OpcodeSystem  Opcode = 0b1110011
)

// Class groups opcodes by how the control core treats them.
type Class uint8

// Instruction classes.
const (
	ClassUnknown Class = iota
	ClassALU           // Integer register/immediate arithmetic, LUI, AUIPC
	ClassLoad          // Integer and floating-point loads
	ClassStore         // Integer and floating-point stores
	ClassBranch        // Conditional branches (B-type)
	ClassJump          // JAL (pc-relative, J-type)
	ClassIndirectJump  // JALR (register-indirect)
	ClassFence         // FENCE / FENCE.I
	ClassSystem        // ECALL, EBREAK, CSR*
	ClassAtomic        // LR/SC/AMO*
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case ClassALU:
		return "alu"
	case ClassLoad:
		return "load"
	case ClassStore:
		return "store"
	case ClassBranch:
		return "branch"
	case ClassJump:
		return "jump"
	case ClassIndirectJump:
		return "indirect-jump"
	case ClassFence:
		return "fence"
	case ClassSystem:
		return "system"
	case ClassAtomic:
		return "atomic"
	default:
		return "unknown"
	}
}

// Instruction represents a decoded RISC-V instruction word.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Opcode Opcode // Major opcode
	Class  Class  // Control classification

	Rd     uint8 // Destination register
	Rs1    uint8 // First source register
	Rs2    uint8 // Second source register
	Funct3 uint8 // Minor opcode, bits [14:12]

	// Imm is the sign-extended immediate for the instruction's format.
	// For branches and JAL it is the byte offset from the instruction's PC.
	Imm int64
}

// IsPCRelative reports whether the instruction transfers control to
// PC + Imm (conditional branches and JAL).
func (i *Instruction) IsPCRelative() bool {
	return i.Class == ClassBranch || i.Class == ClassJump
}

// Target returns the control-flow target of a pc-relative instruction
// located at pc. For other instructions it returns pc unchanged.
func (i *Instruction) Target(pc uint64) uint64 {
	if !i.IsPCRelative() {
		return pc
	}
	return uint64(int64(pc) + i.Imm)
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Opcode: Opcode(word & 0x7F),
		Rd:     uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
	}

	switch inst.Opcode {
	case OpcodeOp, OpcodeOp32:
		inst.Class = ClassALU
	case OpcodeOpImm, OpcodeOpImm32:
		inst.Class = ClassALU
		inst.Imm = immI(word)
	case OpcodeLUI, OpcodeAUIPC:
		inst.Class = ClassALU
		inst.Imm = immU(word)
	case OpcodeLoad, OpcodeLoadFP:
		inst.Class = ClassLoad
		inst.Imm = immI(word)
	case OpcodeStore, OpcodeStoreFP:
		inst.Class = ClassStore
		inst.Imm = immS(word)
	case OpcodeBranch:
		inst.Class = ClassBranch
		inst.Imm = immB(word)
	case OpcodeJAL:
		inst.Class = ClassJump
		inst.Imm = immJ(word)
	case OpcodeJALR:
		inst.Class = ClassIndirectJump
		inst.Imm = immI(word)
	case OpcodeMiscMem:
		inst.Class = ClassFence
	case OpcodeSystem:
		inst.Class = ClassSystem
		inst.Imm = immI(word)
	case OpcodeAMO:
		inst.Class = ClassAtomic
	default:
		inst.Class = ClassUnknown
	}

	return inst
}

// signExtend sign-extends the low bits of v to 64 bits.
func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// immI decodes the I-type immediate: imm[11:0] = inst[31:20].
func immI(word uint32) int64 {
	return signExtend(uint64(word>>20), 12)
}

// immS decodes the S-type immediate: imm[11:5|4:0] = inst[31:25|11:7].
func immS(word uint32) int64 {
	v := (word>>25)<<5 | (word>>7)&0x1F
	return signExtend(uint64(v), 12)
}

// immB decodes the B-type immediate:
// imm[12|10:5] = inst[31|30:25], imm[4:1|11] = inst[11:8|7].
func immB(word uint32) int64 {
	v := (word>>31)&0x1<<12 |
		(word>>7)&0x1<<11 |
		(word>>25)&0x3F<<5 |
		(word>>8)&0xF<<1
	return signExtend(uint64(v), 13)
}

// immU decodes the U-type immediate: imm[31:12] = inst[31:12].
func immU(word uint32) int64 {
	return signExtend(uint64(word&0xFFFFF000), 32)
}

// immJ decodes the J-type immediate:
// imm[20|10:1|11|19:12] = inst[31|30:21|20|19:12].
func immJ(word uint32) int64 {
	v := (word>>31)&0x1<<20 |
		(word>>12)&0xFF<<12 |
		(word>>20)&0x1<<11 |
		(word>>21)&0x3FF<<1
	return signExtend(uint64(v), 21)
}
