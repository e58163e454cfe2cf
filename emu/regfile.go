// Package emu provides functional register state for the master and worker
// cores driven by the control core.
package emu

// RegFile represents a RISC-V integer register file.
// Register x0 is hardwired to zero.
type RegFile struct {
	// X holds the integer registers. X[0] always reads as 0.
	X []uint64

	// PC is the program counter.
	PC uint64
}

// NewRegFile creates a register file with n registers.
func NewRegFile(n int) *RegFile {
	if n < 1 {
		n = 1
	}
	return &RegFile{X: make([]uint64, n)}
}

// Len returns the number of registers.
func (r *RegFile) Len() int {
	return len(r.X)
}

// ReadReg reads a register value. x0 and out-of-range registers return 0.
func (r *RegFile) ReadReg(reg int) uint64 {
	if reg <= 0 || reg >= len(r.X) {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to x0 and out-of-range
// registers are ignored.
func (r *RegFile) WriteReg(reg int, value uint64) {
	if reg <= 0 || reg >= len(r.X) {
		return
	}
	r.X[reg] = value
}

// Equal reports whether two register files hold the same register values.
// The program counter is not compared.
func (r *RegFile) Equal(other *RegFile) bool {
	if len(r.X) != len(other.X) {
		return false
	}
	for i := range r.X {
		if r.ReadReg(i) != other.ReadReg(i) {
			return false
		}
	}
	return true
}

// Reset clears every register and the program counter.
func (r *RegFile) Reset() {
	for i := range r.X {
		r.X[i] = 0
	}
	r.PC = 0
}
