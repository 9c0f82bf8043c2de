package ptree

import (
	"math/rand"
	"testing"

	"purple_rc/pkg/rc"
)

// ============ Persistent Tree Benchmarks ============

func BenchmarkTree_Insert(b *testing.B) {
	h := rc.NewHeap(nil)
	rng := rand.New(rand.NewSource(1))
	t := Empty[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t, _ = Insert(h, t, rng.Int())
	}
	b.StopTimer()
	t.Release()
}

func BenchmarkTree_InsertPersistent(b *testing.B) {
	h := rc.NewHeap(nil)
	rng := rand.New(rand.NewSource(1))
	base := Empty[int]()
	for i := 0; i < 1000; i++ {
		base, _ = Insert(h, base, rng.Int())
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t, _ := Insert(h, base.Retain(), rng.Int())
		t.Release()
	}
	b.StopTimer()
	base.Release()
}

func BenchmarkTree_Contains(b *testing.B) {
	h := rc.NewHeap(nil)
	t := Empty[int]()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		t, _ = Insert(h, t, rng.Intn(10000))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Contains(t, i%10000)
	}
	b.StopTimer()
	t.Release()
}
