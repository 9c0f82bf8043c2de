package plist

import (
	"testing"

	"purple_rc/pkg/rc"
)

// ============ Persistent List Benchmarks ============

func BenchmarkList_Cons(b *testing.B) {
	h := rc.NewHeap(nil)
	l := Nil[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l, _ = Cons(h, i, l)
	}
	b.StopTimer()
	l.Release()
}

func BenchmarkList_Reverse1000(b *testing.B) {
	h := rc.NewHeap(nil)
	vs := make([]int, 1000)
	x, _ := FromSlice(h, vs)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, _ := Reverse(h, x.Retain())
		r.Release()
	}
	b.StopTimer()
	x.Release()
}

// ============ Cascade Benchmarks ============

func BenchmarkList_ReleaseChain10000(b *testing.B) {
	h := rc.NewHeap(nil)
	vs := make([]int, 10000)
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		l, _ := FromSlice(h, vs)
		b.StartTimer()
		l.Release()
	}
}
