package tracker

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// ReadSet is the bounded log of addresses a speculative core has read.
//
// It is a fully associative CAM built on an Akita cache directory with a
// single set of depth ways and one-byte blocks, so every block holds one
// exact address. It is a wrap-around log of the last depth reads: once full,
// each new read overwrites the oldest one, and an address read again takes
// a fresh entry. A hazard is only seen for reads still in the window, so
// depth must cover the longest speculative window.
type ReadSet struct {
	depth int

	// Akita cache directory for tag/valid management
	directory *akitacache.DirectoryImpl

	// pos is the write position of the next new entry; it wraps at depth.
	pos int

	stats ReadSetStats
}

// ReadSetStats holds per-core read-set statistics.
type ReadSetStats struct {
	Records    uint64
	Overwrites uint64
	Resets     uint64
}

// NewReadSet creates an empty read-set holding up to depth addresses.
func NewReadSet(depth int) *ReadSet {
	if depth <= 0 {
		depth = 1
	}

	return &ReadSet{
		depth: depth,
		directory: akitacache.NewDirectory(
			1,
			depth,
			1,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Depth returns the capacity of the read-set.
func (r *ReadSet) Depth() int {
	return r.depth
}

// Position returns the current write position.
func (r *ReadSet) Position() int {
	return r.pos
}

// Stats returns read-set statistics.
func (r *ReadSet) Stats() ReadSetStats {
	return r.stats
}

// Record appends addr at the write position and advances it. Every read
// takes its own entry, repeats included, so a full log holds exactly the
// last depth reads.
func (r *ReadSet) Record(addr uint64) {
	r.stats.Records++

	// Only Record visits blocks, so the LRU victim is the oldest entry and
	// always sits at the write position.
	victim := r.directory.FindVictim(addr)
	if victim == nil {
		return
	}
	if victim.IsValid {
		r.stats.Overwrites++
	}

	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false
	r.directory.Visit(victim)

	r.pos = (r.pos + 1) % r.depth
}

// Contains reports whether addr matches any valid entry.
func (r *ReadSet) Contains(addr uint64) bool {
	block := r.directory.Lookup(0, addr)
	return block != nil && block.IsValid
}

// Len returns the number of valid entries.
func (r *ReadSet) Len() int {
	n := 0
	for _, set := range r.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Addresses returns the valid entries from oldest to newest.
func (r *ReadSet) Addresses() []uint64 {
	var addrs []uint64
	for _, set := range r.directory.GetSets() {
		for _, block := range set.LRUQueue {
			if block.IsValid {
				addrs = append(addrs, block.Tag)
			}
		}
	}
	return addrs
}

// Reset invalidates every entry and rewinds the write position.
func (r *ReadSet) Reset() {
	r.directory.Reset()
	r.pos = 0
	r.stats.Resets++
}
