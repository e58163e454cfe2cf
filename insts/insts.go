// Package insts provides RISC-V instruction word decoding and block
// classification.
//
// The control core only needs a handful of fields from each fixed-width
// instruction word: the major opcode (to tell stores, branches, jumps,
// atomics, fences and system instructions apart) and, for pc-relative
// control flow, the immediate that yields the branch target. It supports:
//   - All RV32I/RV64I major opcodes, classified into instruction classes
//   - I, S, B, U and J immediate formats
//   - Block classification into speculation tiers (worst tier wins)
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xfe000ce3) // beq x0, x0, -8
//	fmt.Printf("Class: %v, Imm: %d\n", inst.Class, inst.Imm)
//	tier := insts.Classify(words)
package insts
