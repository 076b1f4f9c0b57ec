package bufpool

import "testing"

func TestGet_SizeBuckets(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		expectCap int
	}{
		{"1k bucket - exact", 1024, 1024},
		{"1k bucket - smaller", 900, 1024},
		{"8k bucket - smaller", 5000, size8k},
		{"64k bucket - smaller", 40000, size64k},
		{"1m bucket - smaller", 800000, size1m},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.n)
			if len(buf) != tt.n {
				t.Errorf("Get(%d) returned len=%d, want %d", tt.n, len(buf), tt.n)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("Get(%d) returned cap=%d, want %d", tt.n, cap(buf), tt.expectCap)
			}
			Put(buf)
		})
	}
}

func TestPut_NonStandardCap(t *testing.T) {
	buf := make([]float32, 777)
	// Should not panic, simply dropped.
	Put(buf)
}

func BenchmarkGet8k(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(size8k)
		Put(buf)
	}
}
