package memory

import (
	"math"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Byte-accounted allocation
//
// Go owns the real memory. What this package tracks is the budget: every
// refcounted object and every arena subpool reserves its size here before it
// exists and gives it back when it is freed. That gives the rest of the
// module one failure mode (out of memory) and one place to look for leaks.

// ErrOutOfMemory is the only error kind the allocators produce.
var ErrOutOfMemory = errors.New("out of memory")

// MaxBytes is the largest single reservation any allocator accepts: 1<<47
// on 64-bit targets and MaxInt32 on 32-bit ones. Both are below the Go
// runtime's per-allocation limit, so a reservation that passes can be made.
const MaxBytes = uintptr(math.MaxInt32 + strconv.IntSize/64*(1<<47-math.MaxInt32))

// Allocator reserves and returns byte budgets.
type Allocator interface {
	// Reserve accounts for size bytes. A non-nil error means nothing was reserved.
	Reserve(size uintptr) error
	// Release returns size bytes previously reserved.
	Release(size uintptr)
}

// HeapAllocator delegates to the Go runtime and never fails below MaxBytes.
type HeapAllocator struct{}

// NewHeapAllocator returns the unbounded allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

func (*HeapAllocator) Reserve(size uintptr) error {
	if size > MaxBytes {
		return errors.Wrapf(ErrOutOfMemory, "reserve %d bytes", size)
	}
	return nil
}

func (*HeapAllocator) Release(uintptr) {}

// CountingAllocator tracks live bytes and allocation counts, enforces an
// optional limit, and can be told to fail after a number of reservations.
// Counters are atomic so a metrics scrape can read them from another goroutine.
type CountingAllocator struct {
	limit     uint64 // 0 = unlimited
	failAfter atomic.Int64

	live   atomic.Uint64
	peak   atomic.Uint64
	allocs atomic.Uint64
	frees  atomic.Uint64
	failed atomic.Uint64
}

// NewCountingAllocator creates a counting allocator. limit 0 means no limit.
func NewCountingAllocator(limit uint64) *CountingAllocator {
	a := &CountingAllocator{limit: limit}
	a.failAfter.Store(-1)
	return a
}

// FailAfter makes the allocator succeed n more times and then fail every
// reservation until FailAfter is called again. n < 0 disables injection.
func (a *CountingAllocator) FailAfter(n int) {
	a.failAfter.Store(int64(n))
}

func (a *CountingAllocator) Reserve(size uintptr) error {
	if size > MaxBytes {
		a.failed.Add(1)
		return errors.Wrapf(ErrOutOfMemory, "reserve %d bytes", size)
	}
	if n := a.failAfter.Load(); n >= 0 {
		if n == 0 {
			a.failed.Add(1)
			return errors.Wrap(ErrOutOfMemory, "injected allocation failure")
		}
		a.failAfter.Store(n - 1)
	}
	live := a.live.Load() + uint64(size)
	if a.limit != 0 && live > a.limit {
		a.failed.Add(1)
		return errors.Wrapf(ErrOutOfMemory, "reserve %d bytes: limit %d, live %d", size, a.limit, a.live.Load())
	}
	a.live.Store(live)
	a.allocs.Add(1)
	if live > a.peak.Load() {
		a.peak.Store(live)
	}
	return nil
}

func (a *CountingAllocator) Release(size uintptr) {
	if uint64(size) > a.live.Load() {
		panic("memory: release of more bytes than are live")
	}
	a.live.Add(^uint64(size - 1))
	a.frees.Add(1)
}

// LiveBytes returns the bytes currently reserved.
func (a *CountingAllocator) LiveBytes() uint64 { return a.live.Load() }

// PeakBytes returns the high-water mark of LiveBytes.
func (a *CountingAllocator) PeakBytes() uint64 { return a.peak.Load() }

// Allocs returns the number of successful reservations.
func (a *CountingAllocator) Allocs() uint64 { return a.allocs.Load() }

// Frees returns the number of releases.
func (a *CountingAllocator) Frees() uint64 { return a.frees.Load() }

// Failures returns the number of rejected reservations.
func (a *CountingAllocator) Failures() uint64 { return a.failed.Load() }

// Outstanding returns Allocs - Frees. Zero means nothing leaked.
func (a *CountingAllocator) Outstanding() int64 {
	return int64(a.allocs.Load()) - int64(a.frees.Load())
}

// Limit returns the configured byte limit (0 = unlimited).
func (a *CountingAllocator) Limit() uint64 { return a.limit }
