// Package ledger keeps a shadow record of who owns what, so tests can check
// that every reachable refcounted node has a strong count equal to its
// number of live owners.
//
// Owners are the roots the test holds (Hold/Drop) plus every parent edge
// inside the reachable graph. The ledger never touches the counts itself.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Ledger tracks held roots of type K. The zero K means "no node".
type Ledger[K comparable] struct {
	children func(K) []K
	count    func(K) uint32
	roots    map[K]int
}

// New creates a ledger. children lists the nodes a node owns; count reads
// its strong count.
func New[K comparable](children func(K) []K, count func(K) uint32) *Ledger[K] {
	return &Ledger[K]{
		children: children,
		count:    count,
		roots:    make(map[K]int),
	}
}

// Hold records one more owned reference to k and returns k.
func (l *Ledger[K]) Hold(k K) K {
	var zero K
	if k != zero {
		l.roots[k]++
	}
	return k
}

// Drop records that one owned reference to k was given away or released.
func (l *Ledger[K]) Drop(k K) {
	var zero K
	if k == zero {
		return
	}
	if l.roots[k] <= 1 {
		delete(l.roots, k)
		return
	}
	l.roots[k]--
}

// Roots returns the number of distinct held roots.
func (l *Ledger[K]) Roots() int {
	return len(l.roots)
}

// Expected walks everything reachable from the held roots and returns the
// owner count each node should have.
func (l *Ledger[K]) Expected() map[K]uint32 {
	var zero K
	want := make(map[K]uint32)
	visited := make(map[K]bool)
	var stack []K
	for k, n := range l.roots {
		want[k] += uint32(n)
		stack = append(stack, k)
	}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[k] {
			continue
		}
		visited[k] = true
		for _, child := range l.children(k) {
			if child == zero {
				continue
			}
			want[child]++
			if !visited[child] {
				stack = append(stack, child)
			}
		}
	}
	return want
}

// Verify compares every reachable node's count with Expected.
func (l *Ledger[K]) Verify() error {
	var bad []string
	for k, n := range l.Expected() {
		if got := l.count(k); got != n {
			bad = append(bad, fmt.Sprintf("%v: count %d, owners %d", k, got, n))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return errors.Newf("ledger mismatch on %d nodes:\n  %s", len(bad), strings.Join(bad, "\n  "))
}
