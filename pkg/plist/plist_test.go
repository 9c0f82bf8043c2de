package plist

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purple_rc/pkg/ledger"
	"purple_rc/pkg/memory"
	"purple_rc/pkg/rc"
)

func newLedger() *ledger.Ledger[List[int]] {
	return ledger.New(
		func(l List[int]) []List[int] { return []List[int]{l.Tail()} },
		func(l List[int]) uint32 { return l.Count() },
	)
}

func newHeap() (*rc.Heap, *memory.CountingAllocator) {
	alloc := memory.NewCountingAllocator(0)
	return rc.NewHeap(alloc), alloc
}

func mustList(t *testing.T, h *rc.Heap, vs ...int) List[int] {
	t.Helper()
	l, err := FromSlice(h, vs)
	require.NoError(t, err)
	return l
}

func TestList_Nil(t *testing.T) {
	l := Nil[int]()
	assert.True(t, l.IsEmpty())
	assert.Zero(t, l.Count())
	assert.Equal(t, "[]", l.String())
	assert.Zero(t, Length(l))

	_, ok := l.Head()
	assert.False(t, ok)
	assert.True(t, l.Tail().IsEmpty())
	assert.NotPanics(t, func() { l.Retain().Release() })
}

func TestList_ScenarioA(t *testing.T) {
	h, alloc := newHeap()
	led := newLedger()

	three, err := Cons(h, 3, Nil[int]())
	require.NoError(t, err)
	two, err := Cons(h, 2, three)
	require.NoError(t, err)
	x, err := Cons(h, 1, two)
	require.NoError(t, err)
	led.Hold(x)
	require.NoError(t, led.Verify())

	assert.Equal(t, "[1,2,3]", x.String())
	assert.Equal(t, 3, Length(x.Retain()))
	require.NoError(t, led.Verify())

	r, err := Reverse(h, x.Retain())
	require.NoError(t, err)
	led.Hold(r)
	require.NoError(t, led.Verify())
	assert.Equal(t, "[3,2,1]", r.String())
	assert.Equal(t, "[1,2,3]", x.String())

	x.Release()
	led.Drop(x)
	require.NoError(t, led.Verify())
	r.Release()
	led.Drop(r)

	assert.Zero(t, h.Stats().Live())
	assert.Zero(t, alloc.Outstanding())
}

func TestList_ScenarioB(t *testing.T) {
	h, alloc := newHeap()
	led := newLedger()

	x := mustList(t, h, 1, 2, 3)
	y := mustList(t, h, 4, 5)

	c, err := Concat(h, x, y)
	require.NoError(t, err)
	led.Hold(c)
	require.NoError(t, led.Verify())

	assert.Equal(t, "[1,2,3,4,5]", c.String())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Values(c))
	for l := c; !l.IsEmpty(); l = l.Tail() {
		assert.Equal(t, uint32(1), l.Count())
	}
	assert.Equal(t, uint64(5), h.Stats().Live())

	assert.Equal(t, 5, Length(c))
	led.Drop(c)
	assert.Zero(t, alloc.Outstanding())
}

func TestList_ConcatSharesSecondList(t *testing.T) {
	h, _ := newHeap()
	led := newLedger()

	x := led.Hold(mustList(t, h, 1, 2))
	y := led.Hold(mustList(t, h, 3, 4))

	c, err := Concat(h, x.Retain(), y.Retain())
	require.NoError(t, err)
	led.Hold(c)
	require.NoError(t, led.Verify())

	assert.Equal(t, uint32(2), y.Count(), "y is owned by the caller and by c's spine")
	assert.Equal(t, uint32(1), x.Count())

	x.Release()
	led.Drop(x)
	y.Release()
	led.Drop(y)
	require.NoError(t, led.Verify())
	assert.Equal(t, "[1,2,3,4]", c.String())

	c.Release()
	assert.Zero(t, h.Stats().Live())
}

func TestList_ConcatWithEmpty(t *testing.T) {
	h, _ := newHeap()

	x := mustList(t, h, 1, 2)
	c, err := Concat(h, x, Nil[int]())
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", c.String())
	assert.Equal(t, uint64(2), h.Stats().Allocs, "no copy when y is empty")

	d, err := Concat(h, Nil[int](), c)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", d.String())

	d.Release()
	assert.Zero(t, h.Stats().Live())
}

func TestList_StructuralSharing(t *testing.T) {
	h, _ := newHeap()
	led := newLedger()

	x := led.Hold(mustList(t, h, 1, 2, 3))
	y, err := Cons(h, 0, x.Retain())
	require.NoError(t, err)
	led.Hold(y)
	require.NoError(t, led.Verify())
	assert.Equal(t, uint32(2), x.Count())

	x.Release()
	led.Drop(x)
	require.NoError(t, led.Verify())

	assert.Equal(t, "[0,1,2,3]", y.String())
	assert.Equal(t, uint32(1), y.Tail().Count())
	head, ok := y.Tail().Head()
	require.True(t, ok)
	assert.Equal(t, 1, head)

	y.Release()
	assert.Zero(t, h.Stats().Live())
}

func TestList_ConsFailureReleasesTail(t *testing.T) {
	h, alloc := newHeap()

	tail := mustList(t, h, 1, 2)
	alloc.FailAfter(0)
	l, err := Cons(h, 0, tail)
	require.ErrorIs(t, err, memory.ErrOutOfMemory)
	assert.True(t, l.IsEmpty())

	assert.Zero(t, h.Stats().Live())
	assert.Zero(t, alloc.Outstanding())
}

func TestList_FromSliceFailureLeaksNothing(t *testing.T) {
	h, alloc := newHeap()
	alloc.FailAfter(2)

	_, err := FromSlice(h, []int{1, 2, 3, 4})
	require.ErrorIs(t, err, memory.ErrOutOfMemory)
	assert.Zero(t, alloc.Outstanding())
}

func TestList_ReverseFailureLeaksNothing(t *testing.T) {
	for budget := 0; budget < 3; budget++ {
		h, alloc := newHeap()
		x := mustList(t, h, 1, 2, 3)

		alloc.FailAfter(budget)
		r, err := Reverse(h, x)
		require.ErrorIs(t, err, memory.ErrOutOfMemory, "budget %d", budget)
		assert.True(t, r.IsEmpty())
		assert.Zero(t, alloc.Outstanding(), "budget %d", budget)
		assert.Zero(t, h.Stats().Live(), "budget %d", budget)
	}
}

func TestList_ConcatFailureLeaksNothing(t *testing.T) {
	for budget := 0; budget < 3; budget++ {
		h, alloc := newHeap()
		x := mustList(t, h, 1, 2, 3)
		y := mustList(t, h, 4, 5)

		alloc.FailAfter(budget)
		_, err := Concat(h, x, y)
		require.ErrorIs(t, err, memory.ErrOutOfMemory, "budget %d", budget)
		assert.Zero(t, alloc.Outstanding(), "budget %d", budget)
	}
}

func TestList_ConcatFailureKeepsBorrowedOwners(t *testing.T) {
	h, alloc := newHeap()
	led := newLedger()
	x := led.Hold(mustList(t, h, 1, 2, 3))
	y := led.Hold(mustList(t, h, 4, 5))

	alloc.FailAfter(1)
	_, err := Concat(h, x.Retain(), y.Retain())
	require.Error(t, err)
	require.NoError(t, led.Verify())
	assert.Equal(t, "[1,2,3]", x.String())
	assert.Equal(t, "[4,5]", y.String())

	x.Release()
	y.Release()
	assert.Zero(t, alloc.Outstanding())
}

func TestList_ConcatConsumesFirstList(t *testing.T) {
	h, alloc := newHeap()
	x := mustList(t, h, 1, 2, 3)
	y := mustList(t, h, 4, 5)

	c, err := Concat(h, x, y)
	require.NoError(t, err)
	s := h.Stats()
	assert.Equal(t, uint64(3), s.Frees, "x's cells are freed as they are copied")
	assert.Equal(t, uint64(5), s.Live())
	assert.Equal(t, uint32(1), c.Count())

	c.Release()
	assert.Zero(t, alloc.Outstanding())
}

func TestList_LengthFreesAsItGoes(t *testing.T) {
	h, _ := newHeap()
	x := mustList(t, h, 1, 2, 3, 4)
	assert.Equal(t, 4, Length(x))
	assert.Equal(t, uint64(4), h.Stats().Frees)
}

func TestList_DeepReleaseSmallStack(t *testing.T) {
	const n = 100_000
	h, alloc := newHeap()

	l := Nil[int]()
	for i := 0; i < n; i++ {
		var err error
		l, err = Cons(h, i, l)
		require.NoError(t, err)
	}
	shared := l.Retain()

	prev := debug.SetMaxStack(256 << 10)
	defer debug.SetMaxStack(prev)

	done := make(chan int)
	go func() {
		r, err := Reverse(h, l)
		if err != nil {
			done <- -1
			return
		}
		shared.Release()
		done <- Length(r)
	}()
	require.Equal(t, n, <-done)
	assert.Zero(t, alloc.Outstanding())
}
