// Package loader provides ELF binary loading for RISC-V executables and
// slices their code into fetch blocks for the control core.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sarchlab/forksim/insts"
	"github.com/sarchlab/forksim/timing/bus"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultBlockSize is the default maximum number of instructions per
// fetch block.
const DefaultBlockSize = 8

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Executable reports whether the segment holds code.
func (s Segment) Executable() bool {
	return s.Flags&SegmentFlagExecute != 0
}

// Program represents a loaded RISC-V ELF program.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// Load parses a 64-bit RISC-V ELF binary.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// Blocks slices every executable segment into fetch blocks in address
// order. A block ends after a control-transfer instruction or once it
// holds maxSize instructions. Trailing bytes that do not form a full
// instruction word are ignored.
func (p *Program) Blocks(maxSize int) []bus.Block {
	if maxSize <= 0 {
		maxSize = DefaultBlockSize
	}

	decoder := insts.NewDecoder()
	var blocks []bus.Block

	for _, seg := range p.Segments {
		if !seg.Executable() {
			continue
		}

		cur := bus.Block{PC: seg.VirtAddr, Valid: true}
		for off := 0; off+4 <= len(seg.Data); off += 4 {
			word := binary.LittleEndian.Uint32(seg.Data[off:])
			if len(cur.Insts) == 0 {
				cur.PC = seg.VirtAddr + uint64(off)
			}
			cur.Insts = append(cur.Insts, word)

			if endsBlock(decoder.Decode(word).Class) || len(cur.Insts) == maxSize {
				blocks = append(blocks, cur)
				cur = bus.Block{Valid: true}
			}
		}

		if len(cur.Insts) > 0 {
			blocks = append(blocks, cur)
		}
	}

	return blocks
}

func endsBlock(c insts.Class) bool {
	switch c {
	case insts.ClassBranch, insts.ClassJump, insts.ClassIndirectJump:
		return true
	default:
		return false
	}
}
