package insts

// Branch funct3 values.
const (
	Funct3BEQ  uint8 = 0b000
	Funct3BNE  uint8 = 0b001
	Funct3BLT  uint8 = 0b100
	Funct3BGE  uint8 = 0b101
	Funct3BLTU uint8 = 0b110
	Funct3BGEU uint8 = 0b111
)

// NOP is the canonical RISC-V no-op (addi x0, x0, 0).
const NOP uint32 = 0x00000013

// EncodeBranch encodes a B-type conditional branch with a byte offset.
// The offset must be even and fit in 13 signed bits.
func EncodeBranch(funct3, rs1, rs2 uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>12)&0x1<<31 |
		(u>>5)&0x3F<<25 |
		uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 |
		(u>>1)&0xF<<8 |
		(u>>11)&0x1<<7 |
		uint32(OpcodeBranch)
}

// EncodeJAL encodes a JAL with a byte offset that fits in 21 signed bits.
func EncodeJAL(rd uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>20)&0x1<<31 |
		(u>>1)&0x3FF<<21 |
		(u>>11)&0x1<<20 |
		(u>>12)&0xFF<<12 |
		uint32(rd&0x1F)<<7 |
		uint32(OpcodeJAL)
}

// EncodeJALR encodes jalr rd, imm(rs1).
func EncodeJALR(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(OpcodeJALR, 0, rd, rs1, imm)
}

// EncodeADDI encodes addi rd, rs1, imm.
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(OpcodeOpImm, 0, rd, rs1, imm)
}

// EncodeLoad encodes a doubleword load ld rd, imm(rs1).
func EncodeLoad(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(OpcodeLoad, 0b011, rd, rs1, imm)
}

// EncodeStore encodes a doubleword store sd rs2, imm(rs1).
func EncodeStore(rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)&0x7F<<25 |
		uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 |
		0b011<<12 |
		u&0x1F<<7 |
		uint32(OpcodeStore)
}

// EncodeFence encodes fence rw, rw.
func EncodeFence() uint32 {
	return 0x0330000F
}

// EncodeECALL encodes ecall.
func EncodeECALL() uint32 {
	return uint32(OpcodeSystem)
}

// EncodeAMOADD encodes amoadd.d rd, rs2, (rs1).
func EncodeAMOADD(rd, rs1, rs2 uint8) uint32 {
	return uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 |
		0b011<<12 |
		uint32(rd&0x1F)<<7 |
		uint32(OpcodeAMO)
}

func encodeI(op Opcode, funct3, rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 |
		uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 |
		uint32(rd&0x1F)<<7 |
		uint32(op)
}
