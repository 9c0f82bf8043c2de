package arena

import "testing"

// ============ Arena Benchmarks ============

func BenchmarkPool_Alloc(b *testing.B) {
	p, _ := NewPool[treeNode](nil, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Alloc()
	}
	b.StopTimer()
	p.Free()
}

func BenchmarkPool_BuildAndFree(b *testing.B) {
	for i := 0; i < b.N; i++ {
		p, _ := NewPool[treeNode](nil, 16)
		for j := 0; j < 1000; j++ {
			p.Alloc()
		}
		p.Free()
	}
}
