package heapd

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlab/heapd/internal/block"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	return New(WithArenaReserve(4 << 20))
}

// S1: freeing a block and immediately requesting the same size reuses the
// same address instead of growing the arena again.
func TestReuseFreedBlock(t *testing.T) {
	h := newTestHeap(t)

	p1 := h.Allocate(128)
	require.NotEqual(t, Failure, p1)

	// Keep p1 off the tail so releasing it leaves a free block on the list
	// instead of returning it to the kernel adapter.
	pin := h.Allocate(128)
	require.NotEqual(t, Failure, pin)

	h.Release(p1)

	p2 := h.Allocate(128)
	require.NotEqual(t, Failure, p2)

	assert.Equal(t, p1, p2)
}

// S2: freeing the tail allocation shrinks the arena rather than just
// marking the block free.
func TestReleaseTailShrinksArena(t *testing.T) {
	h := newTestHeap(t)

	p := h.Allocate(256)
	require.NotEqual(t, Failure, p)

	before := h.Stats().ArenaUsed

	h.Release(p)

	after := h.Stats()
	assert.Less(t, after.ArenaUsed, before)
	assert.Zero(t, after.BlockCount)
}

// S3: allocating into a free run that is individually too small but
// collectively big enough forward-merges instead of growing the arena.
func TestAllocateForwardMergesFreeRun(t *testing.T) {
	h := newTestHeap(t)

	a := h.Allocate(32)
	b := h.Allocate(32)
	c := h.Allocate(32)
	require.NotEqual(t, Failure, a)
	require.NotEqual(t, Failure, b)
	require.NotEqual(t, Failure, c)

	h.Release(a)
	h.Release(b)

	beforeUsed := h.Stats().ArenaUsed

	big := h.Allocate(32 + uintptr(GetHeaderSize()) + 32)
	require.NotEqual(t, Failure, big)

	assert.Equal(t, a, big)
	assert.Equal(t, beforeUsed, h.Stats().ArenaUsed)
}

// S4: resizing a block upward when its immediate successor is free and
// large enough grows in place without moving the payload.
func TestResizeForwardMergesInPlace(t *testing.T) {
	h := newTestHeap(t)

	a := h.Allocate(32)
	b := h.Allocate(32)
	pin := h.Allocate(32)
	require.NotEqual(t, Failure, a)
	require.NotEqual(t, Failure, b)
	require.NotEqual(t, Failure, pin)

	// b sits between a and pin, so releasing it leaves a free, mergeable
	// successor without triggering the tail-shrink path (pin is the tail).
	h.Release(b)

	grown := h.Resize(a, 32+uintptr(GetHeaderSize())+32)
	require.NotEqual(t, Failure, grown)

	assert.Equal(t, a, grown)
}

// S5: resizing upward with no mergeable neighbor falls back to a fresh
// allocation, copies the old payload, and releases the old block (rather
// than leaking it).
func TestResizeFallbackCopiesAndReleasesOld(t *testing.T) {
	h := newTestHeap(t)

	a := h.Allocate(16)
	require.NotEqual(t, Failure, a)

	// Pin a's neighbor in use so neither merge direction is possible.
	pin := h.Allocate(16)
	require.NotEqual(t, Failure, pin)

	src := (*byte)(a)
	*src = 0x7A

	moved := h.Resize(a, 4096)
	require.NotEqual(t, Failure, moved)
	assert.NotEqual(t, a, moved)
	assert.Equal(t, byte(0x7A), *(*byte)(moved))

	// The old block must have been released, not merely abandoned: a
	// fresh allocation of its old size should be able to reuse it.
	reused := h.Allocate(16)
	assert.Equal(t, a, reused)
}

// S6: a corrupted header's magic mismatch is fatal, surfaced through the
// overridable block.Fatal hook rather than crashing the test binary.
func TestCorruptionIsFatal(t *testing.T) {
	h := newTestHeap(t)

	p := h.Allocate(64)
	require.NotEqual(t, Failure, p)

	hdr := (*uint64)(unsafe.Pointer(uintptr(p) - GetHeaderSize()))
	*hdr = 0

	var caught string

	orig := block.Fatal
	defer func() { block.Fatal = orig }()

	block.Fatal = func(op, format string, args ...interface{}) {
		caught = op
		panic("corruption detected")
	}

	assert.PanicsWithValue(t, "corruption detected", func() {
		h.Release(p)
	})
	assert.Equal(t, "release", caught)
}

func TestZeroAllocateZeroesPayload(t *testing.T) {
	h := newTestHeap(t)

	p := h.ZeroAllocate(16, 4)
	require.NotEqual(t, Failure, p)

	bytes := unsafe.Slice((*byte)(p), 64)
	for _, b := range bytes {
		assert.Zero(t, b)
	}
}

func TestAllocateZeroSizeReturnsNil(t *testing.T) {
	h := newTestHeap(t)

	assert.Nil(t, h.Allocate(0))
}

func TestReleaseNilIsNoop(t *testing.T) {
	h := newTestHeap(t)

	assert.NotPanics(t, func() { h.Release(nil) })
}

func TestDoubleReleaseIsIdempotent(t *testing.T) {
	h := newTestHeap(t)

	a := h.Allocate(32)
	pin := h.Allocate(32)
	require.NotEqual(t, Failure, a)
	require.NotEqual(t, Failure, pin)

	h.Release(a)
	assert.NotPanics(t, func() { h.Release(a) })
}

func TestGetAllocationSizeReportsRequestedSize(t *testing.T) {
	h := newTestHeap(t)

	p := h.Allocate(100)
	require.NotEqual(t, Failure, p)

	assert.EqualValues(t, 100, h.GetAllocationSize(p))
}

func TestNewPanicsOnIncompatibleVersionConstraint(t *testing.T) {
	assert.Panics(t, func() {
		New(WithMinCompatibleVersion(">= 99.0.0"))
	})
}

func TestNewAllowsCompatibleVersionConstraint(t *testing.T) {
	assert.NotPanics(t, func() {
		New(WithMinCompatibleVersion(">= 1.0.0, < 2.0.0"))
	})
}
