// Package heapd implements a userspace general-purpose heap allocator.
//
// It satisfies the classical four-operation contract (allocate,
// zero-allocate, resize, release) against a single process-wide heap
// that grows and shrinks by asking a kernel break adapter
// (internal/kernel) for address space. In-band headers (internal/block)
// form a doubly-linked list in address order, and a coalescing engine
// (internal/merge) tries to satisfy requests by merging adjacent free
// blocks before ever asking the kernel for more.
//
// There is no size-class binning, no per-thread arenas, and no splitting
// of oversized free blocks: a single global lock serializes every public
// operation, and simplicity of the free-list bookkeeping is preferred
// throughout over raw throughput.
package heapd

import (
	"sync"
	"unsafe"

	"github.com/riftlab/heapd/internal/block"
	"github.com/riftlab/heapd/internal/cliutil"
	"github.com/riftlab/heapd/internal/kernel"
	"github.com/riftlab/heapd/internal/merge"
	"github.com/riftlab/heapd/internal/version"
)

// Failure is the sentinel returned by Allocate (and, transitively,
// ZeroAllocate and Resize) when the kernel adapter cannot satisfy a growth
// request. It is distinguished from nil so that out-of-memory and
// zero-size requests remain distinguishable to callers, mirroring the
// classic malloc contract of returning (void*)-1 on exhaustion. It is
// never dereferenced; it exists purely as a comparable value.
var Failure = unsafe.Pointer(^uintptr(0))

// Heap is one allocator instance with its own arena; the package-level
// functions in global.go share a single default Heap. The zero value is
// not usable directly; construct one with New.
type Heap struct {
	mu   sync.Mutex
	once sync.Once

	head *block.Header
	tail *block.Header

	kern *kernel.Adapter
	cfg  *Config
	log  *cliutil.Logger

	initErr error
}

// New constructs a Heap. The kernel reservation is not made until the
// first allocation touches it; see ensureInit.
func New(opts ...Option) *Heap {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if ok, err := version.Satisfies(cfg.MinCompatibleVersion); err != nil {
		panic("heapd: invalid MinCompatibleVersion constraint: " + err.Error())
	} else if !ok {
		panic("heapd: this build's format version " + version.Format +
			" does not satisfy the required constraint " + cfg.MinCompatibleVersion)
	}

	return &Heap{cfg: cfg, log: cliutil.NewLogger(false, cfg.EnableDebug)}
}

// ensureInit performs first-touch setup of the kernel adapter exactly
// once. Using sync.Once instead of a racy boolean flag is the whole point:
// the original C source's `if (!lock_initialized)` check is itself a data
// race, and a one-shot initializer removes the hazard entirely.
func (h *Heap) ensureInit() error {
	h.once.Do(func() {
		h.kern, h.initErr = kernel.New(h.cfg.ArenaReserve)
	})

	return h.initErr
}

// Allocate reserves n bytes and returns a pointer to the start of the
// payload. It returns nil for a zero-size request and Failure if the
// kernel adapter cannot grow the heap.
func (h *Heap) Allocate(n uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.allocateLocked(n)
}

// allocateLocked performs the allocation with the lock already held. It
// exists so Resize's fallback path can allocate fresh memory without
// releasing and reacquiring the (non-reentrant) lock, unlike the source
// shape's resize, which drops the lock around its fallback call and
// briefly exposes a block whose used flag has already been cleared.
func (h *Heap) allocateLocked(n uintptr) unsafe.Pointer {
	if err := h.ensureInit(); err != nil {
		return Failure
	}

	if hdr := h.findFree(n); hdr != nil {
		hdr.Used = true
		return block.ToPointer(hdr)
	}

	total := block.Size + n

	addr, err := h.kern.Grow(int64(total))
	if err != nil {
		return Failure
	}

	h.log.Debugf("allocate: no free block satisfies %d bytes, growing arena by %d", n, total)

	hdr := (*block.Header)(unsafe.Pointer(addr))
	block.Init(hdr, n)
	h.appendTail(hdr)

	return block.ToPointer(hdr)
}

// findFree scans the list from head for the first block that is either
// already big enough or can be grown large enough by forward-merging with
// its free successors. The scan and the merge check are both iterative:
// long heaps must never risk unbounded recursion.
func (h *Heap) findFree(n uintptr) *block.Header {
	for cur := h.head; cur != nil; cur = cur.Next {
		block.Validate(cur, "allocate")

		if !cur.Used {
			if cur.Size >= n {
				h.log.Debugf("allocate: reusing free block at %p (%d bytes) for %d bytes", cur, cur.Size, n)
				return cur
			}

			if merge.CanForwardSatisfy(cur, n) {
				wasTail := cur == h.tail

				h.log.Debugf("allocate: forward-merging from %p to satisfy %d bytes", cur, n)
				merge.ForwardMerge(cur, n)
				if wasTail {
					h.tail = cur
				}

				return cur
			}
		}
	}

	return nil
}

func (h *Heap) appendTail(fresh *block.Header) {
	if h.head == nil {
		h.head = fresh
		h.tail = fresh

		return
	}

	block.AppendTail(h.tail, fresh)
	h.tail = fresh
}

// ZeroAllocate allocates room for count objects of size bytes and zeroes
// the resulting payload. It returns nil if either factor is zero.
func (h *Heap) ZeroAllocate(count, size uintptr) unsafe.Pointer {
	if count == 0 || size == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ptr := h.allocateLocked(count * size)
	if ptr == nil || ptr == Failure {
		return ptr
	}

	zeroMemory(ptr, count*size)

	return ptr
}

// Resize changes the size of the allocation at ptr to n bytes, preserving
// the first min(oldSize, n) bytes of its contents. A nil ptr behaves like
// Allocate(n). It tries, in order: growing in place by merging forward,
// growing by merging backward (which requires shifting the payload down),
// and finally falling back to a fresh allocation plus copy, after which,
// unlike the C source this is grounded on, the old block is explicitly
// released rather than leaked.
func (h *Heap) Resize(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	if ptr == nil {
		return h.Allocate(n)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := block.FromPointer(ptr)
	block.Validate(hdr, "resize")

	oldSize := hdr.Size

	// Mark the block free so the merge predicates can fold its own bytes
	// into the accounting. This is the subtle bit: the block being resized
	// participates in its own merge.
	hdr.Used = false

	if hdr.Next != nil && merge.CanForwardSatisfy(hdr, n) {
		wasTail := hdr == h.tail

		h.log.Debugf("resize: forward-merging block at %p in place to reach %d bytes", hdr, n)
		merge.ForwardMerge(hdr, n)
		if wasTail {
			h.tail = hdr
		}

		return block.ToPointer(hdr)
	}

	if hdr.Prev != nil && merge.CanBackwardSatisfy(hdr, n) {
		wasTail := hdr == h.tail

		h.log.Debugf("resize: backward-merging block at %p to reach %d bytes", hdr, n)
		newHdr := merge.BackwardMerge(hdr, n)
		if newHdr.Prev == nil {
			h.head = newHdr
		}

		if wasTail {
			h.tail = newHdr
		}

		newPtr := block.ToPointer(newHdr)
		// newHdr sits at a lower address than hdr, so the payload regions
		// overlap with the destination ahead of the source: a forward,
		// low-to-high byte copy is safe.
		copyMemory(newPtr, ptr, oldSize)

		return newPtr
	}

	hdr.Used = true

	h.log.Debugf("resize: no merge satisfies %d bytes, falling back to allocate+copy", n)

	newPtr := h.allocateLocked(n)
	if newPtr == nil || newPtr == Failure {
		hdr.Used = true

		return newPtr
	}

	copySize := oldSize
	if n < copySize {
		copySize = n
	}

	copyMemory(newPtr, ptr, copySize)
	h.releaseLocked(hdr)

	return newPtr
}

// Release marks the allocation at ptr free. A nil ptr is a no-op, and so
// is releasing a pointer that is already free (idempotent double-free
// protection). If the freed block sits at the tail of the list, the
// kernel adapter is asked to contract the heap by the freed run.
func (h *Heap) Release(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := block.FromPointer(ptr)
	block.Validate(hdr, "release")
	h.releaseLocked(hdr)
}

func (h *Heap) releaseLocked(hdr *block.Header) {
	if !hdr.Used {
		return
	}

	hdr.Used = false

	if hdr.Next == nil {
		h.tailShrink(hdr)
	}
}

// tailShrink walks backward from the tail while the current block is
// free, unlinking and returning each one to the kernel adapter. It stops
// at the first used predecessor, or when the list empties out entirely.
// The walk is iterative for the same reason every other list traversal
// here is.
func (h *Heap) tailShrink(tail *block.Header) {
	cur := tail

	for cur != nil && !cur.Used {
		prev := cur.Prev
		freed := cur.Footprint()

		h.log.Debugf("tail-shrink: releasing %d bytes at %p back to the kernel adapter", freed, cur)

		if _, err := h.kern.Grow(-int64(freed)); err != nil {
			// Shrinking never fails in this design (it only decommits
			// pages already owned by the reservation); if it somehow did,
			// leaving the block linked but unreachable from the tail
			// would corrupt the list invariant, so treat it as fatal.
			block.Fatal("tail-shrink", "kernel adapter rejected shrink of %d bytes: %v", freed, err)
		}

		if prev != nil {
			prev.Next = nil
		} else {
			h.head = nil
		}

		h.tail = prev
		cur = prev
	}
}

// GetAllocationSize returns the stored payload size of the block backing
// ptr. A bad magic number is fatal, as with every other header access.
func (h *Heap) GetAllocationSize(ptr unsafe.Pointer) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := block.FromPointer(ptr)
	block.Validate(hdr, "get-allocation-size")

	return hdr.Size
}

// GetHeaderSize returns the implementation's in-band header footprint.
func GetHeaderSize() uintptr {
	return block.Size
}

func zeroMemory(ptr unsafe.Pointer, n uintptr) {
	dst := unsafe.Slice((*byte)(ptr), n)
	clear(dst)
}

func copyMemory(dst, src unsafe.Pointer, n uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}
