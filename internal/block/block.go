// Package block defines the in-band metadata record that precedes every
// allocation and the doubly-linked list that threads all blocks together
// in address order.
package block

import (
	"fmt"
	"log"
	"os"
	"unsafe"
)

// Magic is the sentinel word stamped into every live header. A header whose
// Magic field does not match this value is either uninitialized, corrupted,
// or not a header at all.
const Magic uint64 = 0xDEADBEEFDEADBEEF

// Header is the fixed-size record placed immediately before a block's
// payload. The list order of Header values IS the address order of the
// blocks they describe: Next always starts exactly at the end of the
// current block's payload, with no gaps.
type Header struct {
	Magic uint64
	Size  uintptr
	Used  bool
	Next  *Header
	Prev  *Header
}

// Size is the footprint of a Header in bytes, including compiler padding.
// It is also the offset between a header and its payload.
var Size = unsafe.Sizeof(Header{})

// Fatal reports unrecoverable metadata corruption and terminates the
// process. It is a package variable rather than a hard os.Exit call so
// tests can substitute a handler that records the failure instead of
// killing the test binary.
var Fatal = func(op string, format string, args ...interface{}) {
	log.Printf("heapd: %s: "+format, append([]interface{}{op}, args...)...)
	os.Exit(1)
}

// ToPointer converts a header address into the user-visible payload
// pointer, one Header unit past the header itself.
func ToPointer(h *Header) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + Size)
}

// FromPointer recovers the header that precedes a user pointer previously
// returned by an allocation.
func FromPointer(p unsafe.Pointer) *Header {
	return (*Header)(unsafe.Pointer(uintptr(p) - Size))
}

// Validate checks a header's magic sentinel. A mismatch is treated as
// corruption and is fatal: op identifies the calling operation for the
// diagnostic message.
func Validate(h *Header, op string) {
	if h.Magic != Magic {
		Fatal(op, "magic number mismatch at %p: invalid pointer or corrupted metadata", h)
	}
}

// Init stamps a freshly obtained region of memory as a new, in-use header
// with no neighbors.
func Init(h *Header, size uintptr) {
	h.Magic = Magic
	h.Size = size
	h.Used = true
	h.Next = nil
	h.Prev = nil
}

// Footprint returns the total number of bytes a block occupies in the
// backing arena: the header plus its payload.
func (h *Header) Footprint() uintptr {
	return Size + h.Size
}

// String renders a header for debug logging.
func (h *Header) String() string {
	return fmt.Sprintf("block{addr=%p size=%d used=%t}", h, h.Size, h.Used)
}

// AppendTail links a freshly built header onto the end of the list whose
// current tail is given. tail may be nil for an empty list, in which case
// the new header simply has no predecessor.
func AppendTail(tail *Header, fresh *Header) {
	if tail == nil {
		return
	}

	Validate(tail, "append")
	tail.Next = fresh
	fresh.Prev = tail
}

