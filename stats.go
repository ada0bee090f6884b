package heapd

// Stats summarizes a Heap's current book-keeping. Unlike a size-classed
// allocator's statistics, there is no per-class breakdown here (there are
// no size classes), only the totals the free-list engine tracks directly.
type Stats struct {
	// BlockCount is the number of blocks currently threaded on the list,
	// used and free combined.
	BlockCount int

	// FreeBlockCount is how many of those blocks are currently free.
	FreeBlockCount int

	// BytesInUse is the sum of the Size field of every used block.
	BytesInUse uintptr

	// BytesFree is the sum of the Size field of every free block, space
	// the allocator could reuse without asking the kernel for more.
	BytesFree uintptr

	// ArenaUsed is how much of the kernel adapter's reservation is
	// currently committed (the simulated break).
	ArenaUsed uintptr

	// ArenaReserved is the total address space reserved for heap growth.
	ArenaReserved uintptr
}

// Stats walks the list under the lock and reports a snapshot of the
// heap's current shape. It is O(n) in the number of blocks and is meant
// for diagnostics, not the hot allocation path.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	var s Stats

	for cur := h.head; cur != nil; cur = cur.Next {
		s.BlockCount++

		if cur.Used {
			s.BytesInUse += cur.Size
		} else {
			s.FreeBlockCount++
			s.BytesFree += cur.Size
		}
	}

	if h.kern != nil {
		s.ArenaUsed = h.kern.Used()
		s.ArenaReserved = h.kern.Reserved()
	}

	return s
}
