// Package plist implements an immutable cons list with shared tails.
//
// Lists are refcounted: two lists can share any common tail, and sharing is
// a count bump, never a copy. The zero List is the empty list; it is a tag,
// not a heap object, so it needs no pinning and can never be freed.
//
// Every function documents what it does with its list arguments:
// takes (the callee owns it from now on), borrows (the caller keeps it),
// gives (the result belongs to the caller).
package plist

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"purple_rc/pkg/rc"
)

// List is a handle to a refcounted cons cell, or the empty list.
type List[T any] struct {
	node *rc.Object[cell[T]]
}

type cell[T any] struct {
	value T
	next  List[T]
}

func releaseCell[T any](c *cell[T], cs *rc.Cascade) {
	rc.Release(cs, c.next.node)
}

// Nil gives the empty list.
func Nil[T any]() List[T] {
	return List[T]{}
}

// Cons gives a new list with value in front of tail (takes tail).
// If the allocation fails tail is released and the error is returned.
func Cons[T any](h *rc.Heap, value T, tail List[T]) (List[T], error) {
	o, err := rc.Alloc(h, cell[T]{value: value, next: tail}, releaseCell[T])
	if err != nil {
		tail.Release()
		return List[T]{}, errors.Wrap(err, "plist: cons")
	}
	return List[T]{node: o}, nil
}

// FromSlice gives a list holding vs in order.
func FromSlice[T any](h *rc.Heap, vs []T) (List[T], error) {
	l := Nil[T]()
	for i := len(vs) - 1; i >= 0; i-- {
		var err error
		if l, err = Cons(h, vs[i], l); err != nil {
			return List[T]{}, err
		}
	}
	return l, nil
}

// Length returns the number of elements (takes l).
func Length[T any](l List[T]) int {
	n := 0
	for !l.IsEmpty() {
		n++
		next := l.node.Get().next.Retain()
		l.Release()
		l = next
	}
	return n
}

// Reverse gives l reversed (takes l). On allocation failure everything
// built so far and the rest of l are released.
func Reverse[T any](h *rc.Heap, l List[T]) (List[T], error) {
	acc := Nil[T]()
	for !l.IsEmpty() {
		c := l.node.Get()
		var err error
		if acc, err = Cons(h, c.value, acc); err != nil {
			l.Release()
			return List[T]{}, errors.Wrap(err, "plist: reverse")
		}
		next := c.next.Retain()
		l.Release()
		l = next
	}
	return acc, nil
}

// Concat gives x followed by y (takes x and y). The spine of x is copied
// cell by cell while x is consumed, and y is shared as the tail of the
// result. On allocation failure the partial copy, the rest of x and y are
// released.
func Concat[T any](h *rc.Heap, x, y List[T]) (List[T], error) {
	if x.IsEmpty() {
		return y, nil
	}
	if y.IsEmpty() {
		return x, nil
	}
	var out List[T]
	var last *cell[T]
	for !x.IsEmpty() {
		c := x.node.Get()
		n, err := Cons(h, c.value, Nil[T]())
		if err != nil {
			out.Release()
			x.Release()
			y.Release()
			return List[T]{}, errors.Wrap(err, "plist: concat")
		}
		// The copy has no other owner yet, so its links are set in place.
		if last == nil {
			out = n
		} else {
			last.next = n
		}
		last = n.node.Get()
		next := c.next.Retain()
		x.Release()
		x = next
	}
	last.next = y
	return out, nil
}

// Retain adds an owner to l and gives it back (borrows l).
func (l List[T]) Retain() List[T] {
	rc.IncRef(l.node)
	return l
}

// Release drops the caller's ownership of l (takes l).
func (l List[T]) Release() {
	rc.DecRef(l.node)
}

// IsEmpty reports whether l is the empty list.
func (l List[T]) IsEmpty() bool {
	return l.node == nil
}

// Head returns the first element (borrows l). ok is false for the empty list.
func (l List[T]) Head() (value T, ok bool) {
	if l.IsEmpty() {
		return value, false
	}
	return l.node.Get().value, true
}

// Tail returns the rest of the list (borrows l). The result is borrowed
// too: Retain it to keep it past l's lifetime.
func (l List[T]) Tail() List[T] {
	if l.IsEmpty() {
		return l
	}
	return l.node.Get().next
}

// Count returns the strong count of the first cell, 0 for the empty list.
func (l List[T]) Count() uint32 {
	if l.IsEmpty() {
		return 0
	}
	return l.node.Count()
}

// Values copies the elements into a slice (borrows l).
func Values[T any](l List[T]) []T {
	var out []T
	for ; !l.IsEmpty(); l = l.Tail() {
		out = append(out, l.node.Get().value)
	}
	return out
}

// String formats l as [1,2,3] (borrows l).
func (l List[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for first := true; !l.IsEmpty(); l = l.Tail() {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		fmt.Fprint(&sb, l.node.Get().value)
	}
	sb.WriteByte(']')
	return sb.String()
}
