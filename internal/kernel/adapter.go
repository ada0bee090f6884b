// Package kernel wraps the single primitive the heap needs from its host:
// grow or shrink the break of a contiguous region by a signed byte delta,
// returning the address the growth started from.
//
// A real sbrk(2) is not available to a memory-safe Go process without
// cgo, and would race with the Go runtime's own allocator if it were. We
// get the same contract a different way: reserve a large region of address
// space up front with PROT_NONE, and have Grow move the committed
// (PROT_READ|PROT_WRITE) prefix of that reservation. The heap above never
// sees the difference; it only ever asks for "extend by N" or "contract
// by N".
package kernel

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrOutOfMemory is returned when a growth request would exceed the
// adapter's reserved address space.
var ErrOutOfMemory = errors.New("kernel: reservation exhausted")

// DefaultReserve is the amount of address space reserved for a new
// Adapter when no explicit size is requested. Reserving is cheap (it does
// not commit physical memory), so this can comfortably be large.
const DefaultReserve = 1 << 30 // 1GB of address space

// Adapter owns one reserved region of address space and tracks how much of
// its prefix is currently committed ("the break"). It is not safe for
// concurrent use by multiple goroutines; callers are expected to serialize
// access with their own lock, exactly as the facade above does.
type Adapter struct {
	region []byte
	used   uintptr
}

// New reserves size bytes of address space and returns an Adapter whose
// break starts at zero bytes used.
func New(size uintptr) (*Adapter, error) {
	if size == 0 {
		size = DefaultReserve
	}

	region, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("kernel: reserve %d bytes: %w", size, err)
	}

	return &Adapter{region: region}, nil
}

// Grow moves the break by delta bytes. A positive delta commits and
// returns the address the new region starts at, the previous break. A
// negative delta decommits the tail of the committed range; its return
// value is not meaningful to callers, mirroring sbrk's own contract for
// shrink calls. Zero is legal and simply returns the current break.
func (a *Adapter) Grow(delta int64) (uintptr, error) {
	switch {
	case delta == 0:
		return a.brk(), nil
	case delta > 0:
		return a.grow(uintptr(delta))
	default:
		return a.shrink(uintptr(-delta)), nil
	}
}

func (a *Adapter) brk() uintptr {
	return a.base() + a.used
}

func (a *Adapter) base() uintptr {
	if len(a.region) == 0 {
		return 0
	}

	return uintptr(unsafe.Pointer(&a.region[0]))
}

func (a *Adapter) grow(n uintptr) (uintptr, error) {
	if a.used+n > uintptr(len(a.region)) {
		return 0, ErrOutOfMemory
	}

	old := a.brk()

	// mprotect needs a page-aligned start address. The page holding the
	// current break is already committed if the break is mid-page, so
	// re-committing from the start of that page is harmless.
	start := a.used &^ (uintptr(unix.Getpagesize()) - 1)

	if err := unix.Mprotect(a.region[start:a.used+n], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, fmt.Errorf("kernel: commit %d bytes: %w", n, err)
	}

	a.used += n

	return old, nil
}

func (a *Adapter) shrink(n uintptr) uintptr {
	if n > a.used {
		n = a.used
	}

	a.used -= n

	// Best effort: failing to decommit leaves the pages mapped but unused,
	// which is safe, just wasteful. It must never be fatal.
	_ = unix.Mprotect(a.region[a.used:a.used+n], unix.PROT_NONE)

	return a.brk()
}

// Used reports how many bytes of the reservation are currently committed.
func (a *Adapter) Used() uintptr {
	return a.used
}

// Reserved reports the total size of the adapter's address-space
// reservation.
func (a *Adapter) Reserved() uintptr {
	return uintptr(len(a.region))
}

// Close releases the entire reservation back to the operating system. It
// is meant for tests and for clean process shutdown; the heap itself never
// calls it mid-lifetime.
func (a *Adapter) Close() error {
	if len(a.region) == 0 {
		return nil
	}

	err := unix.Munmap(a.region)
	a.region = nil
	a.used = 0

	return err
}
