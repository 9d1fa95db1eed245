package mem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocAligned(t *testing.T) {
	for _, align := range []int{1, 8, 16, 64, 256, 4096} {
		for _, size := range []int{1, 10, 63, 64, 65, 1024} {
			t.Run(fmt.Sprintf("align=%d/size=%d", align, size), func(t *testing.T) {
				buf := AllocAligned(size, align)
				assert.Len(t, buf, size)
				assert.Equal(t, size, cap(buf))
				assert.True(t, IsAligned(buf, align), "address %x not aligned to %d", Addr(buf), align)
			})
		}
	}

	assert.Nil(t, AllocAligned(0, 8))
	assert.Nil(t, AllocAligned(-1, 8))
	assert.Nil(t, AllocAligned(16, 3))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, AlignUp(0, 16))
	assert.Equal(t, 16, AlignUp(1, 16))
	assert.Equal(t, 16, AlignUp(16, 16))
	assert.Equal(t, 32, AlignUp(17, 16))
}

func TestPadding(t *testing.T) {
	assert.Equal(t, 0, Padding(0x1000, 64))
	assert.Equal(t, 63, Padding(0x1001, 64))
	assert.Equal(t, 8, Padding(0x1008, 16))
}

func TestIsPowerOfTwo(t *testing.T) {
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(4096))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(-8))
	assert.False(t, IsPowerOfTwo(24))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, uintptr(0), Addr(nil))
	b := make([]byte, 4)
	assert.NotZero(t, Addr(b))
	assert.Equal(t, Addr(b), Addr(b[:0]))
}
