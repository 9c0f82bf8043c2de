package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graph is a fake refcounted graph; id 0 is the nil node.
type graph struct {
	edges  map[int][]int
	counts map[int]uint32
}

func (g *graph) ledger() *Ledger[int] {
	return New(
		func(k int) []int { return g.edges[k] },
		func(k int) uint32 { return g.counts[k] },
	)
}

func TestLedger_SharedTail(t *testing.T) {
	// 1 -> 3, 2 -> 3, 3 -> 4; roots 1 and 2
	g := &graph{
		edges:  map[int][]int{1: {3}, 2: {3, 0}, 3: {4}},
		counts: map[int]uint32{1: 1, 2: 1, 3: 2, 4: 1},
	}
	l := g.ledger()
	l.Hold(1)
	l.Hold(2)

	require.NoError(t, l.Verify())
	assert.Equal(t, map[int]uint32{1: 1, 2: 1, 3: 2, 4: 1}, l.Expected())
	assert.Equal(t, 2, l.Roots())
}

func TestLedger_DetectsMismatch(t *testing.T) {
	g := &graph{
		edges:  map[int][]int{1: {2}},
		counts: map[int]uint32{1: 1, 2: 2},
	}
	l := g.ledger()
	l.Hold(1)

	err := l.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2: count 2, owners 1")
}

func TestLedger_HoldDrop(t *testing.T) {
	g := &graph{counts: map[int]uint32{5: 2}}
	l := g.ledger()

	l.Hold(0)
	assert.Zero(t, l.Roots())

	l.Hold(5)
	l.Hold(5)
	require.NoError(t, l.Verify())

	l.Drop(5)
	assert.Error(t, l.Verify())
	g.counts[5] = 1
	require.NoError(t, l.Verify())

	l.Drop(5)
	l.Drop(0)
	assert.Zero(t, l.Roots())
	assert.Empty(t, l.Expected())
}
