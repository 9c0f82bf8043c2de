package rc

// Iterative cascade collector
//
// A naive dec_ref frees a node and then calls dec_ref on each child, so a
// chain of N nodes needs N stack frames. Here the cleanup only pushes its
// children onto the pending worklist of the active Cascade; the outermost
// DecRef pops and decrements them one at a time until nothing is pending.
// Structure depth turns into loop iterations, the goroutine stack stays flat.
//
// The worklist is LIFO. Cleanups must not depend on the order in which
// siblings are released.

const maxPooledPending = 1 << 16

// releasable is anything a Cascade can decrement. Only *Object[T] implements it.
type releasable interface {
	drop(c *Cascade)
}

// Cascade is an in-progress teardown. Cleanups receive it and hand their
// children to it through Release.
type Cascade struct {
	heap    *Heap
	pending []releasable
}

var cascades = newPool(func() *Cascade {
	return &Cascade{pending: make([]releasable, 0, 64)}
})

func acquireCascade(h *Heap) *Cascade {
	c := cascades.get()
	c.heap = h
	h.stats.Cascades++
	return c
}

func releaseCascade(c *Cascade) {
	c.heap = nil
	if cap(c.pending) > maxPooledPending {
		return
	}
	c.pending = c.pending[:0]
	cascades.put(c)
}

// Release drops one owner of o (takes o) as part of cascade c. With a nil
// cascade it is DecRef. Otherwise the decrement is deferred until the
// cascade's drain loop gets to it, and Release returns immediately.
func Release[T any](c *Cascade, o *Object[T]) {
	if o == nil {
		return
	}
	if c == nil {
		DecRef(o)
		return
	}
	c.push(o, o.heap)
}

// Pending returns the number of decrements waiting in the worklist.
func (c *Cascade) Pending() int {
	return len(c.pending)
}

// push queues r. The worklist depth is recorded on h, the heap r lives on,
// which may differ from the heap that opened the cascade.
func (c *Cascade) push(r releasable, h *Heap) {
	c.pending = append(c.pending, r)
	if n := len(c.pending); n > h.stats.MaxPending {
		h.stats.MaxPending = n
	}
}

func (c *Cascade) drain() {
	for len(c.pending) > 0 {
		last := len(c.pending) - 1
		r := c.pending[last]
		c.pending[last] = nil
		c.pending = c.pending[:last]
		r.drop(c)
	}
}
