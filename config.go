package heapd

import "github.com/riftlab/heapd/internal/kernel"

// Config holds the tunables a Heap is constructed with.
type Config struct {
	// ArenaReserve is the amount of address space reserved up front for
	// the kernel break adapter to grow into. It is a reservation only;
	// no physical memory is committed until Allocate actually needs it.
	ArenaReserve uintptr

	// EnableDebug turns on verbose diagnostic logging of merge decisions.
	// Off by default; see WithDebug.
	EnableDebug bool

	// MinCompatibleVersion, if set, is a semver constraint that this
	// build's format version (see internal/version) must satisfy. It lets
	// an embedding application assert at startup that it was built
	// against a compatible header layout.
	MinCompatibleVersion string
}

// Option configures a Config during Heap construction.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		ArenaReserve: kernel.DefaultReserve,
		EnableDebug:  false,
	}
}

// WithArenaReserve overrides the amount of address space reserved for heap
// growth.
func WithArenaReserve(size uintptr) Option {
	return func(c *Config) { c.ArenaReserve = size }
}

// WithDebug toggles verbose merge-decision logging.
func WithDebug(enabled bool) Option {
	return func(c *Config) { c.EnableDebug = enabled }
}

// WithMinCompatibleVersion requires the library's format version to
// satisfy the given semver constraint; New panics at construction time if
// it does not, so incompatible builds fail fast instead of corrupting
// metadata later.
func WithMinCompatibleVersion(constraint string) Option {
	return func(c *Config) { c.MinCompatibleVersion = constraint }
}
