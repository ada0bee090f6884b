package heapd

import "unsafe"

// defaultHeap is the process-wide heap used by the package-level
// convenience functions below. It is constructed at package
// initialization, but its kernel reservation is made lazily by the
// sync.Once in ensureInit, so no address space is reserved until
// something actually allocates.
var defaultHeap = New()

// Allocate reserves n bytes on the default heap. See Heap.Allocate.
func Allocate(n uintptr) unsafe.Pointer { return defaultHeap.Allocate(n) }

// ZeroAllocate reserves room for count objects of size bytes on the
// default heap and zeroes them. See Heap.ZeroAllocate.
func ZeroAllocate(count, size uintptr) unsafe.Pointer {
	return defaultHeap.ZeroAllocate(count, size)
}

// Resize changes the size of an allocation on the default heap. See
// Heap.Resize.
func Resize(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	return defaultHeap.Resize(ptr, n)
}

// Release frees an allocation on the default heap. See Heap.Release.
func Release(ptr unsafe.Pointer) { defaultHeap.Release(ptr) }

// GetAllocationSize returns the stored size of an allocation on the
// default heap. See Heap.GetAllocationSize.
func GetAllocationSize(ptr unsafe.Pointer) uintptr {
	return defaultHeap.GetAllocationSize(ptr)
}

// GetStats returns a snapshot of the default heap's current shape.
func GetStats() Stats { return defaultHeap.Stats() }
