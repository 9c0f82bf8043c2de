package arena

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"

	"purple_rc/pkg/memory"
)

// Bump-pointer node pool (bulk allocation, whole-pool deallocation)
//
// A Pool carves fixed-size nodes out of a chain of subpools:
//
//   head -> [cap 12, used 5] -> [cap 6, full] -> [cap 3, full] -> nil
//
// Only the head subpool has free slots. When it fills up, a subpool of twice
// its capacity is linked in front of it, so N allocations reserve O(N) bytes
// in total. Nodes are never released one at a time: no free list, no
// compaction. Free walks the chain once and returns everything.
//
// The pool is a bulk-allocation strategy only; it does not refcount.

var (
	// ErrExhausted is returned when the pool cannot grow. It wraps
	// memory.ErrOutOfMemory.
	ErrExhausted = errors.Wrap(memory.ErrOutOfMemory, "arena: exhausted")

	ErrInvalidCapacity = errors.New("arena: initial capacity must be positive")
	ErrFreed           = errors.New("arena: pool already freed")
)

type subPool[T any] struct {
	next  *subPool[T]
	nodes []T
}

// Pool is a growable arena of T nodes. It is not safe for concurrent use.
type Pool[T any] struct {
	alloc       memory.Allocator
	head        *subPool[T]
	topCapacity int
	topUsed     int
	freed       bool
	stats       Stats
}

// Stats tracks arena activity
type Stats struct {
	Allocs        uint64 // Nodes handed out
	Grows         uint64 // Subpools added after the first
	Subpools      int    // Subpools currently in the chain
	Capacity      int    // Total node slots across the chain
	ReservedBytes uint64 // Bytes held from the allocator, header included
}

func nodeSize[T any]() uintptr {
	var zero T
	return max(unsafe.Sizeof(zero), 1)
}

func subPoolBytes[T any](capacity int) uintptr {
	return unsafe.Sizeof(subPool[T]{}) + uintptr(capacity)*nodeSize[T]()
}

// maxNodes is the largest subpool capacity whose byte size fits MaxBytes.
func maxNodes[T any]() int {
	n := (memory.MaxBytes - unsafe.Sizeof(subPool[T]{})) / nodeSize[T]()
	return int(min(n, uintptr(math.MaxInt)))
}

// NewPool creates a pool whose first subpool holds initialCapacity nodes.
// A nil allocator selects the unbounded Go heap.
func NewPool[T any](alloc memory.Allocator, initialCapacity int) (*Pool[T], error) {
	if initialCapacity < 1 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", initialCapacity)
	}
	if initialCapacity > maxNodes[T]() {
		return nil, errors.Wrapf(ErrExhausted, "initial capacity %d", initialCapacity)
	}
	if alloc == nil {
		alloc = memory.NewHeapAllocator()
	}
	header := unsafe.Sizeof(Pool[T]{})
	if err := alloc.Reserve(header); err != nil {
		return nil, errors.Wrap(err, "arena: pool header")
	}
	p := &Pool[T]{alloc: alloc}
	p.stats.ReservedBytes = uint64(header)
	if err := p.push(initialCapacity); err != nil {
		alloc.Release(header)
		return nil, err
	}
	return p, nil
}

// push links a new subpool of the given capacity in front of the head.
func (p *Pool[T]) push(capacity int) error {
	size := subPoolBytes[T](capacity)
	if err := p.alloc.Reserve(size); err != nil {
		return errors.WithSecondaryError(
			errors.Wrapf(ErrExhausted, "subpool of %d nodes", capacity), err)
	}
	p.head = &subPool[T]{next: p.head, nodes: make([]T, capacity)}
	p.topCapacity = capacity
	p.topUsed = 0
	p.stats.Subpools++
	p.stats.Capacity += capacity
	p.stats.ReservedBytes += uint64(size)
	return nil
}

// grow doubles the head capacity. Overflow is reported, never wrapped.
func (p *Pool[T]) grow() error {
	if p.topCapacity > maxNodes[T]()/2 {
		return errors.Wrapf(ErrExhausted, "cannot double subpool of %d nodes", p.topCapacity)
	}
	if err := p.push(2 * p.topCapacity); err != nil {
		return err
	}
	p.stats.Grows++
	return nil
}

// Alloc returns a zeroed node from the head subpool, growing the pool
// when the head is full. The node lives until Free.
func (p *Pool[T]) Alloc() (*T, error) {
	if p.freed {
		return nil, ErrFreed
	}
	if p.topUsed == p.topCapacity {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	n := &p.head.nodes[p.topUsed]
	p.topUsed++
	p.stats.Allocs++
	return n, nil
}

// Free releases every subpool and then the pool header. Every node handed
// out by Alloc becomes invalid. Calling Free twice is a no-op.
func (p *Pool[T]) Free() {
	if p.freed {
		return
	}
	for sp := p.head; sp != nil; {
		next := sp.next
		p.alloc.Release(subPoolBytes[T](len(sp.nodes)))
		sp.next, sp.nodes = nil, nil
		sp = next
	}
	p.alloc.Release(unsafe.Sizeof(Pool[T]{}))
	p.head = nil
	p.topCapacity, p.topUsed = 0, 0
	p.freed = true
	p.stats = Stats{Allocs: p.stats.Allocs, Grows: p.stats.Grows}
}

// Len returns the number of nodes handed out.
func (p *Pool[T]) Len() int {
	return int(p.stats.Allocs)
}

// Cap returns the total node capacity across all subpools.
func (p *Pool[T]) Cap() int {
	return p.stats.Capacity
}

// Subpools returns the length of the subpool chain.
func (p *Pool[T]) Subpools() int {
	return p.stats.Subpools
}

// Available returns the free slots left in the head subpool.
func (p *Pool[T]) Available() int {
	return p.topCapacity - p.topUsed
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	return p.stats
}
