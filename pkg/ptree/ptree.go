// Package ptree implements an immutable binary search tree with structural
// sharing.
//
// Insert and Delete rebuild only the path from the root to the touched node;
// every subtree off that path is shared with the input tree by a count bump.
// The zero Tree is the empty tree. In-order traversal is strictly increasing.
//
// Ownership words follow package rc: takes, borrows, gives.
package ptree

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"purple_rc/pkg/rc"
)

// Tree is a handle to a refcounted tree node, or the empty tree.
type Tree[T cmp.Ordered] struct {
	node *rc.Object[branch[T]]
}

type branch[T cmp.Ordered] struct {
	value       T
	left, right Tree[T]
}

func releaseBranch[T cmp.Ordered](b *branch[T], c *rc.Cascade) {
	rc.Release(c, b.left.node)
	rc.Release(c, b.right.node)
}

// Empty gives the empty tree.
func Empty[T cmp.Ordered]() Tree[T] {
	return Tree[T]{}
}

// Node gives a tree with the given root value and children (takes left and
// right). It does not check ordering. On failure both children are released.
func Node[T cmp.Ordered](h *rc.Heap, value T, left, right Tree[T]) (Tree[T], error) {
	o, err := rc.Alloc(h, branch[T]{value: value, left: left, right: right}, releaseBranch[T])
	if err != nil {
		left.Release()
		right.Release()
		return Tree[T]{}, errors.Wrap(err, "ptree: node")
	}
	return Tree[T]{node: o}, nil
}

// Contains reports whether v is in t (borrows t).
func Contains[T cmp.Ordered](t Tree[T], v T) bool {
	for !t.IsEmpty() {
		b := t.node.Get()
		switch c := cmp.Compare(v, b.value); {
		case c < 0:
			t = b.left
		case c > 0:
			t = b.right
		default:
			return true
		}
	}
	return false
}

// RightmostValue returns the largest value in t (borrows t). ok is false
// for the empty tree.
func RightmostValue[T cmp.Ordered](t Tree[T]) (value T, ok bool) {
	if t.IsEmpty() {
		return value, false
	}
	for {
		b := t.node.Get()
		if b.right.IsEmpty() {
			return b.value, true
		}
		t = b.right
	}
}

// step is one node on the way down from the root, and the side taken.
type step[T cmp.Ordered] struct {
	b      *branch[T]
	goLeft bool
}

// descend walks from the root towards v. It returns the path above the stop
// point and the branch holding v, or nil if v is absent (borrows t).
func descend[T cmp.Ordered](t Tree[T], v T) (path []step[T], found *branch[T]) {
	for !t.IsEmpty() {
		b := t.node.Get()
		c := cmp.Compare(v, b.value)
		if c == 0 {
			return path, b
		}
		path = append(path, step[T]{b: b, goLeft: c < 0})
		if c < 0 {
			t = b.left
		} else {
			t = b.right
		}
	}
	return path, nil
}

// rebuild copies the path bottom-up around sub (takes sub). Children off
// the path are shared with the original tree.
func rebuild[T cmp.Ordered](h *rc.Heap, path []step[T], sub Tree[T]) (Tree[T], error) {
	for i := len(path) - 1; i >= 0; i-- {
		s := path[i]
		var err error
		if s.goLeft {
			sub, err = Node(h, s.b.value, sub, s.b.right.Retain())
		} else {
			sub, err = Node(h, s.b.value, s.b.left.Retain(), sub)
		}
		if err != nil {
			return Tree[T]{}, err
		}
	}
	return sub, nil
}

// Insert gives t with v added (takes t). If v is already present t itself
// is given back. On failure t is released.
func Insert[T cmp.Ordered](h *rc.Heap, t Tree[T], v T) (Tree[T], error) {
	path, found := descend(t, v)
	if found != nil {
		return t, nil
	}
	leaf, err := Node(h, v, Empty[T](), Empty[T]())
	if err != nil {
		t.Release()
		return Tree[T]{}, errors.Wrap(err, "ptree: insert")
	}
	out, err := rebuild(h, path, leaf)
	t.Release()
	if err != nil {
		return Tree[T]{}, errors.Wrap(err, "ptree: insert")
	}
	return out, nil
}

// Delete gives t without v (takes t). A node with at most one child is
// replaced by that child; a node with two children takes the value of its
// in-order predecessor, which is then deleted from the left subtree. If v
// is absent t itself is given back. On failure t is released.
func Delete[T cmp.Ordered](h *rc.Heap, t Tree[T], v T) (Tree[T], error) {
	path, found := descend(t, v)
	if found == nil {
		return t, nil
	}

	var sub Tree[T]
	switch {
	case found.left.IsEmpty():
		sub = found.right.Retain()
	case found.right.IsEmpty():
		sub = found.left.Retain()
	default:
		pred, _ := RightmostValue(found.left)
		left, err := Delete(h, found.left.Retain(), pred)
		if err != nil {
			t.Release()
			return Tree[T]{}, err
		}
		if sub, err = Node(h, pred, left, found.right.Retain()); err != nil {
			t.Release()
			return Tree[T]{}, errors.Wrap(err, "ptree: delete")
		}
	}

	out, err := rebuild(h, path, sub)
	t.Release()
	if err != nil {
		return Tree[T]{}, errors.Wrap(err, "ptree: delete")
	}
	return out, nil
}

// FromValues gives a tree holding vs inserted in order.
func FromValues[T cmp.Ordered](h *rc.Heap, vs ...T) (Tree[T], error) {
	t := Empty[T]()
	for _, v := range vs {
		var err error
		if t, err = Insert(h, t, v); err != nil {
			return Tree[T]{}, err
		}
	}
	return t, nil
}

// Retain adds an owner to t and gives it back (borrows t).
func (t Tree[T]) Retain() Tree[T] {
	rc.IncRef(t.node)
	return t
}

// Release drops the caller's ownership of t (takes t).
func (t Tree[T]) Release() {
	rc.DecRef(t.node)
}

// IsEmpty reports whether t is the empty tree.
func (t Tree[T]) IsEmpty() bool {
	return t.node == nil
}

// Value returns the root value (borrows t).
func (t Tree[T]) Value() (value T, ok bool) {
	if t.IsEmpty() {
		return value, false
	}
	return t.node.Get().value, true
}

// Left returns the borrowed left subtree.
func (t Tree[T]) Left() Tree[T] {
	if t.IsEmpty() {
		return t
	}
	return t.node.Get().left
}

// Right returns the borrowed right subtree.
func (t Tree[T]) Right() Tree[T] {
	if t.IsEmpty() {
		return t
	}
	return t.node.Get().right
}

// Count returns the root's strong count, 0 for the empty tree.
func (t Tree[T]) Count() uint32 {
	if t.IsEmpty() {
		return 0
	}
	return t.node.Count()
}

// Walk calls fn on every value in order until fn returns false (borrows t).
func Walk[T cmp.Ordered](t Tree[T], fn func(T) bool) {
	var stack []Tree[T]
	for !t.IsEmpty() || len(stack) > 0 {
		for !t.IsEmpty() {
			stack = append(stack, t)
			t = t.Left()
		}
		t = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v, _ := t.Value()
		if !fn(v) {
			return
		}
		t = t.Right()
	}
}

// Values returns the in-order values of t (borrows t).
func Values[T cmp.Ordered](t Tree[T]) []T {
	var out []T
	Walk(t, func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Size returns the number of values in t (borrows t).
func Size[T cmp.Ordered](t Tree[T]) int {
	n := 0
	Walk(t, func(T) bool {
		n++
		return true
	})
	return n
}

// Height returns the number of nodes on the longest root-to-leaf path
// (borrows t).
func Height[T cmp.Ordered](t Tree[T]) int {
	type frame struct {
		t     Tree[T]
		depth int
	}
	best := 0
	stack := []frame{{t, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.t.IsEmpty() {
			continue
		}
		best = max(best, f.depth)
		stack = append(stack, frame{f.t.Left(), f.depth + 1}, frame{f.t.Right(), f.depth + 1})
	}
	return best
}

// String formats t as {v1,v2,...} in order (borrows t).
func (t Tree[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	Walk(t, func(v T) bool {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		fmt.Fprint(&sb, v)
		return true
	})
	sb.WriteByte('}')
	return sb.String()
}
