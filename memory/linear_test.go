package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kiln/internal/mem"
)

const mib = 1 << 20

func TestLinear_DefaultBufferScenario(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []LinearOption
	}{
		{name: "mapped"},
		{name: "heap", opts: []LinearOption{WithHeapBacking()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLinear(0, tc.opts...)
			require.NoError(t, err)
			defer l.Close()

			assert.Equal(t, 4*mib, l.Capacity())

			_, err = l.Allocate(5*mib, 0)
			require.ErrorIs(t, err, ErrOutOfMemory)

			a, err := l.Allocate(mib, 0)
			require.NoError(t, err)
			b, err := l.Allocate(mib, 0)
			require.NoError(t, err)
			assert.Equal(t, mem.Addr(a)+mib, mem.Addr(b), "allocations must be contiguous")

			l.Reset()
			assert.Equal(t, 0, l.Used())

			all, err := l.Allocate(4*mib, 0)
			require.NoError(t, err)
			assert.Len(t, all, 4*mib)
		})
	}
}

func TestLinear_Alignment(t *testing.T) {
	l, err := NewLinear(4096, WithHeapBacking())
	require.NoError(t, err)

	_, err = l.Allocate(3, 1)
	require.NoError(t, err)

	for _, align := range []int{2, 8, 16, 64, 256} {
		b, err := l.Allocate(5, align)
		require.NoError(t, err)
		assert.True(t, mem.IsAligned(b, align), "align %d", align)
	}

	_, err = l.Allocate(8, 3)
	require.ErrorIs(t, err, ErrInvalidAlignment)
	_, err = l.Allocate(0, 8)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestLinear_PaddingCountsTowardsCapacity(t *testing.T) {
	l, err := NewLinear(128, WithHeapBacking())
	require.NoError(t, err)

	_, err = l.Allocate(1, 1)
	require.NoError(t, err)

	// 127 bytes remain but 64-byte alignment needs 63 of them.
	_, err = l.Allocate(100, 64)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, uint64(1), l.Failures())

	b, err := l.Allocate(64, 64)
	require.NoError(t, err)
	assert.Len(t, b, 64)
}

func TestLinear_Reallocate(t *testing.T) {
	l, err := NewLinear(1024, WithHeapBacking())
	require.NoError(t, err)

	a, err := l.Allocate(16, 8)
	require.NoError(t, err)
	copy(a, "0123456789abcdef")

	grown, err := l.Reallocate(a, 16, 32, 8)
	require.NoError(t, err)
	assert.Equal(t, mem.Addr(a), mem.Addr(grown), "last allocation grows in place")
	assert.Equal(t, "0123456789abcdef", string(grown[:16]))

	other, err := l.Allocate(8, 8)
	require.NoError(t, err)
	require.NotNil(t, other)

	moved, err := l.Reallocate(grown, 32, 64, 8)
	require.NoError(t, err)
	assert.NotEqual(t, mem.Addr(grown), mem.Addr(moved))
	assert.Equal(t, "0123456789abcdef", string(moved[:16]))

	_, err = l.Reallocate(moved, 64, 4096, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestLinear_ConcurrentAllocate(t *testing.T) {
	const (
		goroutines = 8
		perG       = 128
		size       = 16
	)
	l, err := NewLinear(goroutines*perG*size, WithHeapBacking())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uintptr]struct{})
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				b, err := l.Allocate(size, size)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[mem.Addr(b)] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perG)
	assert.Equal(t, 0, l.Remaining())

	_, err = l.Allocate(1, 1)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestLinear_Close(t *testing.T) {
	l, err := NewLinear(0)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = l.Allocate(8, 8)
	require.ErrorIs(t, err, ErrClosed)
}
