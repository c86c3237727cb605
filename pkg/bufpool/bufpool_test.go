package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSizeClasses(t *testing.T) {
	p := NewPool(nil)

	tests := []struct {
		name    string
		n       int
		wantCap int
	}{
		{"zero", 0, DefaultSmallSize},
		{"header", 4, DefaultSmallSize},
		{"small boundary", DefaultSmallSize, DefaultSmallSize},
		{"one sector run", DefaultSmallSize + 1, DefaultMediumSize},
		{"medium boundary", DefaultMediumSize, DefaultMediumSize},
		{"chunk", DefaultLargeSize, DefaultLargeSize},
		{"oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
		{"negative", -5, DefaultSmallSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := p.Get(tt.n)
			assert.Len(t, buf, max(tt.n, 0))
			assert.Equal(t, tt.wantCap, cap(buf))
			p.Put(buf)
		})
	}
}

func TestCustomClasses(t *testing.T) {
	p := NewPool(&Config{Sizes: []int{1024, 0, 512, 1024, -1}})
	assert.Equal(t, []int{512, 1024}, p.Sizes())

	assert.Equal(t, 512, cap(p.Get(100)))
	assert.Equal(t, 1024, cap(p.Get(513)))
	assert.Equal(t, 2048, cap(p.Get(2048)))

	empty := NewPool(&Config{})
	assert.Equal(t, DefaultConfig().Sizes, empty.Sizes())
}

func TestPutIgnoresForeignBuffers(t *testing.T) {
	p := NewPool(&Config{Sizes: []int{64}})

	p.Put(nil)
	p.Put(make([]byte, 10, 100))

	buf := p.Get(64)
	assert.Equal(t, 64, cap(buf))
}

func TestPutRestoresFullLength(t *testing.T) {
	p := NewPool(&Config{Sizes: []int{64}})

	buf := p.Get(8)
	p.Put(buf[:2])

	again := p.Get(64)
	assert.Len(t, again, 64)
}

func TestPackageLevel(t *testing.T) {
	buf := Get(100)
	assert.Len(t, buf, 100)
	Put(buf)

	assert.Len(t, GetUint32(513), 513)
}

func TestConcurrentUse(t *testing.T) {
	p := NewPool(nil)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				n := (g*997 + i*131) % (DefaultMediumSize + 10)
				buf := p.Get(n)
				for j := range buf {
					buf[j] = byte(g)
				}
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	p := NewPool(nil)
	b.ReportAllocs()
	for b.Loop() {
		p.Put(p.Get(8192))
	}
}
