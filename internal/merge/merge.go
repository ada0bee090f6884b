// Package merge implements the coalescing engine: pure predicates that
// decide whether a run of contiguous free blocks can satisfy a size
// request, and the mutating executors that collapse such a run into one
// in-use block.
//
// Every walk here is iterative rather than recursive. The list a walk
// traverses can be arbitrarily long, and unbounded recursion over it would
// turn a large heap into a stack-overflow hazard.
package merge

import "github.com/riftlab/heapd/internal/block"

// CanForwardSatisfy walks forward from start (which must itself be free),
// accumulating start.Size plus, for every absorbed neighbor, the header
// bytes that neighbor's own metadata would vacate once merged. It reports
// true as soon as the running total reaches need, and false if the walk
// hits a used block or the end of the list first.
func CanForwardSatisfy(start *block.Header, need uintptr) bool {
	if start == nil || start.Used {
		return false
	}

	available := start.Size
	if available >= need {
		return true
	}

	cur := start.Next
	for cur != nil {
		block.Validate(cur, "forward-merge-check")

		if cur.Used {
			return false
		}

		available += block.Size + cur.Size
		if available >= need {
			return true
		}

		cur = cur.Next
	}

	return false
}

// CanBackwardSatisfy is the symmetric walk via Prev links: it asks whether
// start together with a run of free predecessors can reach need bytes.
func CanBackwardSatisfy(start *block.Header, need uintptr) bool {
	if start == nil || start.Used {
		return false
	}

	available := start.Size
	if available >= need {
		return true
	}

	cur := start.Prev
	for cur != nil {
		block.Validate(cur, "backward-merge-check")

		if cur.Used {
			return false
		}

		available += block.Size + cur.Size
		if available >= need {
			return true
		}

		cur = cur.Prev
	}

	return false
}

// ForwardMerge collapses first and as many of its free successors as are
// needed to reach size bytes into a single used block anchored at first's
// address. The caller must already know CanForwardSatisfy(first, size)
// holds; ForwardMerge does not re-check feasibility, only where the run
// stops.
func ForwardMerge(first *block.Header, size uintptr) {
	available := first.Size
	last := first

	for available < size {
		block.Validate(last.Next, "forward-merge")
		last = last.Next
		available += block.Size + last.Size
	}

	first.Next = last.Next
	if last.Next != nil {
		last.Next.Prev = first
	}

	first.Size = available
	first.Used = true
}

// BackwardMerge collapses first and as many of its free predecessors as
// are needed to reach size bytes. The resulting header sits at the
// address-lowest absorbed predecessor and is returned to the caller. The
// caller must already know CanBackwardSatisfy(first, size) holds.
//
// The new header's address is lower than first's, so the caller owns
// copying the original payload from the old (higher) user pointer to the
// new (lower) one; because the destination precedes the source in memory,
// a left-to-right byte copy is safe even though the regions overlap.
func BackwardMerge(first *block.Header, size uintptr) *block.Header {
	available := first.Size
	result := first

	for available < size {
		block.Validate(result.Prev, "backward-merge")
		result = result.Prev
		available += block.Size + result.Size
	}

	result.Next = first.Next
	if first.Next != nil {
		first.Next.Prev = result
	}

	result.Size = available
	result.Used = true

	return result
}
