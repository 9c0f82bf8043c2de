package rc

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Reference Counting for immutable shared structures
//
// Every object carries a strong count. Alloc gives the caller the first
// reference (count = 1). IncRef adds an owner, DecRef removes one; the
// transition from 1 to 0 runs the object's cleanup and frees it, exactly once.
//
// Ownership is part of every function contract in this module:
//   takes   - the callee becomes the owner and must DecRef or forward the
//             reference on every path, including errors
//   borrows - the caller keeps ownership; the callee may read but must
//             IncRef before storing the reference anywhere longer-lived
//   gives   - the returned reference belongs to the caller
//
// Cleanups never recurse into their children. They hand them to the active
// Cascade (see cascade.go), which keeps the call stack flat no matter how
// deep the structure is.

// Cleanup releases the references owned by value. It must pass every child
// to Release(c, child) and must not read sibling objects.
type Cleanup[T any] func(value *T, c *Cascade)

// Object is a refcounted box around an immutable value.
type Object[T any] struct {
	count   uint32
	freed   bool
	size    uintptr
	heap    *Heap
	cleanup Cleanup[T]
	value   T
}

// Alloc creates an object with count 1 (gives). cleanup may be nil for
// values that own no references. On failure no object exists and the
// error is memory.ErrOutOfMemory.
func Alloc[T any](h *Heap, value T, cleanup Cleanup[T]) (*Object[T], error) {
	size := unsafe.Sizeof(Object[T]{})
	if err := h.alloc.Reserve(size); err != nil {
		h.stats.FailedAllocs++
		return nil, errors.Wrapf(err, "rc: alloc %T", value)
	}
	h.stats.Allocs++
	return &Object[T]{
		count:   1,
		size:    size,
		heap:    h,
		cleanup: cleanup,
		value:   value,
	}, nil
}

// IncRef adds an owner and returns o, so it can be used inline:
//
//	y, err := plist.Cons(h, 0, rc.IncRef(x))
//
// A nil object is returned unchanged.
func IncRef[T any](o *Object[T]) *Object[T] {
	if o == nil {
		return nil
	}
	o.mustBeLive("incref")
	o.count++
	o.heap.stats.IncRefs++
	return o
}

// DecRef drops one owner (takes o). When the count reaches zero the object
// and everything only it kept alive are freed before DecRef returns. Safe
// to call from anywhere, including inside a cleanup.
func DecRef[T any](o *Object[T]) {
	if o == nil {
		return
	}
	c := acquireCascade(o.heap)
	o.drop(c)
	c.drain()
	releaseCascade(c)
}

// Get returns the payload (borrows o). The pointer is valid only while
// the caller holds a reference.
func (o *Object[T]) Get() *T {
	o.mustBeLive("read")
	return &o.value
}

// Count returns the current strong count.
func (o *Object[T]) Count() uint32 {
	return o.count
}

// Freed reports whether the object has been released.
func (o *Object[T]) Freed() bool {
	return o.freed
}

// Heap returns the heap the object was allocated on.
func (o *Object[T]) Heap() *Heap {
	return o.heap
}

// drop performs one decrement on behalf of the cascade c.
func (o *Object[T]) drop(c *Cascade) {
	o.mustBeLive("decref")
	o.count--
	o.heap.stats.DecRefs++
	if o.count > 0 {
		return
	}
	if o.cleanup != nil {
		o.cleanup(&o.value, c)
	}
	o.free()
}

func (o *Object[T]) free() {
	var zero T
	o.value = zero
	o.cleanup = nil
	o.freed = true
	o.heap.alloc.Release(o.size)
	o.heap.stats.Frees++
}

func (o *Object[T]) mustBeLive(op string) {
	if o.freed {
		panic(errors.AssertionFailedf("rc: %s of freed object (use after free)", op))
	}
}
