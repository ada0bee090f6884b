// Command heapctl drives a heapd.Heap from the command line: a small
// allocation workload for smoke-testing the allocator, a one-shot stats
// dump, and a long-running HTTP/3 stats server for remote monitoring.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/riftlab/heapd"
	"github.com/riftlab/heapd/internal/cliutil"
	"github.com/riftlab/heapd/internal/config"
	"github.com/riftlab/heapd/internal/diag"
)

// uintptrOf and ptrFrom round-trip a live allocation's address through a
// uintptr so bench can keep a slice of "live pointers" without upsetting
// vet's unsafe.Pointer checks; the memory they address is kernel-backed,
// not GC-managed, so it cannot move between the two calls.
func uintptrOf(p unsafe.Pointer) uintptr { return uintptr(p) }
func ptrFrom(u uintptr) unsafe.Pointer   { return unsafe.Pointer(u) }

const toolName = "heapctl"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "bench":
		runBench(args)
	case "stats":
		runStats(args)
	case "serve":
		runServe(args)
	case "version":
		fmt.Printf("%s dev\n", toolName)
	case "-help", "--help", "help":
		usage()
	default:
		cliutil.ExitWithError("unknown command %q", cmd)
	}
}

func usage() {
	cliutil.PrintUsage(toolName, []cliutil.Command{
		{Name: "bench", Description: "run an allocate/free workload against a heap"},
		{Name: "stats", Description: "allocate a workload then print a stats snapshot"},
		{Name: "serve", Description: "start an HTTP/3 stats server over a live heap"},
		{Name: "version", Description: "print version information"},
	})
}

// newHeap loads the given config file and constructs a Heap from it,
// returning the parsed file alongside so callers can also derive CLI-local
// settings (such as the logger's debug flag) from the same source.
func newHeap(configPath string) (*heapd.Heap, *config.File) {
	f, err := config.Load(configPath)
	if err != nil {
		cliutil.ExitWithError("%v", err)
	}

	var opts []heapd.Option
	if f.ArenaReserve > 0 {
		opts = append(opts, heapd.WithArenaReserve(f.ArenaReserve))
	}

	opts = append(opts, heapd.WithDebug(f.EnableDebug))

	if f.MinCompatibleVersion != "" {
		opts = append(opts, heapd.WithMinCompatibleVersion(f.MinCompatibleVersion))
	}

	return heapd.New(opts...), f
}

func runBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a heap config JSON file")
	iterations := fs.Int("iterations", 10000, "number of allocate/free cycles")
	size := fs.Int("size", 128, "payload size per allocation, in bytes")
	verbose := fs.Bool("verbose", false, "print progress")
	_ = fs.Parse(args)

	h, f := newHeap(*configPath)
	log := cliutil.NewLogger(*verbose, f.EnableDebug)

	live := make([]uintptr, 0, 64)

	for i := 0; i < *iterations; i++ {
		ptr := h.Allocate(uintptr(*size))
		if ptr == nil || ptr == heapd.Failure {
			cliutil.ExitWithError("allocation %d failed", i)
		}

		live = append(live, uintptrOf(ptr))

		if len(live)%3 == 0 {
			h.Release(ptrFrom(live[len(live)-1]))
			live = live[:len(live)-1]
		}

		if *verbose && i%1000 == 0 {
			log.Info("iteration %d: %d live allocations", i, len(live))
		}
	}

	for _, p := range live {
		h.Release(ptrFrom(p))
	}

	log.Info("bench complete: %d iterations", *iterations)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a heap config JSON file")
	size := fs.Int("size", 128, "payload size per allocation, in bytes")
	count := fs.Int("count", 100, "number of allocations to make before reporting")
	_ = fs.Parse(args)

	h, _ := newHeap(*configPath)

	for i := 0; i < *count; i++ {
		if ptr := h.Allocate(uintptr(*size)); ptr == nil || ptr == heapd.Failure {
			cliutil.ExitWithError("allocation %d failed", i)
		}
	}

	s := h.Stats()
	fmt.Printf("blocks:       %d (%d free)\n", s.BlockCount, s.FreeBlockCount)
	fmt.Printf("bytes in use: %d\n", s.BytesInUse)
	fmt.Printf("bytes free:   %d\n", s.BytesFree)
	fmt.Printf("arena used:   %d / %d reserved\n", s.ArenaUsed, s.ArenaReserved)
}

type statsAdapter struct{ h *heapd.Heap }

func (a statsAdapter) Stats() interface{} { return a.h.Stats() }

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a heap config JSON file")
	addr := fs.String("addr", ":4433", "UDP address to serve the stats endpoint on")
	_ = fs.Parse(args)

	h, _ := newHeap(*configPath)

	srv := diag.NewServer(*addr, nil, statsAdapter{h}, diag.Options{
		MaxIdleTimeout: 30 * time.Second,
	})

	realAddr, err := srv.Start()
	if err != nil {
		cliutil.ExitWithError("failed to start stats server: %v", err)
	}

	fmt.Printf("serving heap stats on https://%s/stats (HTTP/3)\n", realAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
	case err := <-srv.Errors():
		cliutil.ExitWithError("stats server failed: %v", err)
	}

	_ = srv.Stop()
}
