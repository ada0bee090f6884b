package block

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeader(t *testing.T, size uintptr) *Header {
	t.Helper()

	buf := make([]byte, Size+size)
	h := (*Header)(unsafe.Pointer(&buf[0]))
	Init(h, size)

	// Keep the backing slice alive for the lifetime of the test by never
	// letting it go out of scope before h does; returning h alone is
	// enough since Go keeps buf reachable through the unsafe.Pointer.
	return h
}

func TestInitStampsMagicAndSize(t *testing.T) {
	h := newHeader(t, 64)

	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, uintptr(64), h.Size)
	assert.True(t, h.Used)
	assert.Nil(t, h.Next)
	assert.Nil(t, h.Prev)
}

func TestToPointerFromPointerRoundTrip(t *testing.T) {
	h := newHeader(t, 32)

	p := ToPointer(h)
	got := FromPointer(p)

	assert.Same(t, h, got)
}

func TestValidateAcceptsGoodMagic(t *testing.T) {
	h := newHeader(t, 16)

	assert.NotPanics(t, func() { Validate(h, "test") })
}

func TestValidateFatalsOnCorruption(t *testing.T) {
	h := newHeader(t, 16)
	h.Magic = 0

	var gotOp, gotMsg string

	orig := Fatal
	defer func() { Fatal = orig }()

	Fatal = func(op, format string, args ...interface{}) {
		gotOp = op
		gotMsg = format
		panic("fatal called")
	}

	require.PanicsWithValue(t, "fatal called", func() { Validate(h, "release") })
	assert.Equal(t, "release", gotOp)
	assert.Contains(t, gotMsg, "magic number mismatch")
}

func TestFootprintIncludesHeader(t *testing.T) {
	h := newHeader(t, 100)

	assert.Equal(t, Size+100, h.Footprint())
}

func TestAppendTailLinksNeighbors(t *testing.T) {
	a := newHeader(t, 8)
	b := newHeader(t, 8)

	AppendTail(a, b)

	assert.Same(t, b, a.Next)
	assert.Same(t, a, b.Prev)
}

func TestAppendTailToEmptyListIsNoop(t *testing.T) {
	b := newHeader(t, 8)

	assert.NotPanics(t, func() { AppendTail(nil, b) })
	assert.Nil(t, b.Prev)
}

func TestStringDoesNotPanic(t *testing.T) {
	h := newHeader(t, 8)

	assert.Contains(t, h.String(), "block{")
}
