package rc

import (
	"fmt"
	"strings"

	"purple_rc/pkg/memory"
)

// Heap is the allocation context every refcounted object belongs to.
// It is not safe for concurrent use; callers serialise access per heap.
type Heap struct {
	alloc memory.Allocator
	stats Stats
}

// NewHeap creates a heap over the given allocator. nil selects the
// unbounded Go heap.
func NewHeap(alloc memory.Allocator) *Heap {
	if alloc == nil {
		alloc = memory.NewHeapAllocator()
	}
	return &Heap{alloc: alloc}
}

// Allocator returns the allocator backing this heap.
func (h *Heap) Allocator() memory.Allocator {
	return h.alloc
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats {
	return h.stats
}

// Stats tracks reference counting activity on a heap
type Stats struct {
	Allocs       uint64 // Objects created
	FailedAllocs uint64 // Allocations rejected by the allocator
	Frees        uint64 // Objects whose count reached zero
	IncRefs      uint64
	DecRefs      uint64
	Cascades     uint64 // Outermost DecRef calls (one drain loop each)
	MaxPending   int    // Largest worklist seen during any cascade
}

// Live returns the number of objects allocated and not yet freed.
func (s Stats) Live() uint64 {
	return s.Allocs - s.Frees
}

// String returns a formatted statistics report
func (s Stats) String() string {
	var sb strings.Builder

	sb.WriteString("=== Reference Counting Statistics ===\n\n")
	sb.WriteString(fmt.Sprintf("  Objects allocated:   %d\n", s.Allocs))
	sb.WriteString(fmt.Sprintf("  Objects freed:       %d\n", s.Frees))
	sb.WriteString(fmt.Sprintf("  Objects live:        %d\n", s.Live()))
	sb.WriteString(fmt.Sprintf("  Failed allocations:  %d\n", s.FailedAllocs))
	sb.WriteString(fmt.Sprintf("  inc_ref calls:       %d\n", s.IncRefs))
	sb.WriteString(fmt.Sprintf("  dec_ref calls:       %d\n", s.DecRefs))
	sb.WriteString(fmt.Sprintf("  Cascades drained:    %d\n", s.Cascades))
	sb.WriteString(fmt.Sprintf("  Max pending:         %d\n", s.MaxPending))

	return sb.String()
}

// Summary returns a one-line summary
func (s Stats) Summary() string {
	return fmt.Sprintf("rc: %d allocated, %d freed, %d live, max pending %d",
		s.Allocs, s.Frees, s.Live(), s.MaxPending)
}
