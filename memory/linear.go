package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/kiln/internal/mem"
	"github.com/hupe1980/kiln/internal/mmap"
)

const (
	// DefaultLinearCapacity is the buffer size used when Init is called with 0.
	DefaultLinearCapacity = 4 << 20

	// minMappedCapacity is the smallest buffer placed in an anonymous mapping.
	// Smaller buffers live on the Go heap.
	minMappedCapacity = 64 << 10
)

// Linear is a bump allocator over a single fixed buffer.
//
// Allocation is a lock-free compare-and-swap on the offset. Release is a
// no-op; Reset rewinds the offset and invalidates every previous allocation.
// Buffer contents are not cleared on Reset.
type Linear struct {
	buf      []byte
	base     uintptr
	mapping  *mmap.Mapping
	offset   atomic.Int64
	allocs   atomic.Uint64
	failures atomic.Uint64
	closed   atomic.Bool
}

// LinearOption configures a Linear allocator.
type LinearOption func(*linearConfig)

type linearConfig struct {
	heap bool
}

// WithHeapBacking keeps the buffer on the Go heap instead of an anonymous mapping.
func WithHeapBacking() LinearOption {
	return func(c *linearConfig) {
		c.heap = true
	}
}

// NewLinear creates a linear allocator with the given capacity.
// A capacity of 0 selects DefaultLinearCapacity.
func NewLinear(capacity int, opts ...LinearOption) (*Linear, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("memory: linear capacity %d: %w", capacity, ErrInvalidSize)
	}
	if capacity == 0 {
		capacity = DefaultLinearCapacity
	}

	var cfg linearConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Linear{}
	if !cfg.heap && capacity >= minMappedCapacity {
		// Off-heap keeps large frame buffers out of GC scanning.
		m, err := mmap.MapAnon(capacity)
		if err == nil {
			l.mapping = m
			l.buf = m.Bytes()
		}
	}
	if l.buf == nil {
		l.buf = mem.AllocAligned(capacity, mem.CacheLineSize)
	}
	l.base = mem.Addr(l.buf)
	return l, nil
}

// Allocate implements Allocator. It fails with ErrOutOfMemory when the
// remaining space, including alignment padding, is insufficient.
func (l *Linear) Allocate(size, align int) ([]byte, error) {
	align, err := normalizeRequest("linear", size, align)
	if err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, &AllocError{Allocator: "linear", Size: size, Align: align, Err: ErrClosed}
	}

	capacity := int64(len(l.buf))
	for {
		old := l.offset.Load()
		start := old + int64(mem.Padding(l.base+uintptr(old), align))
		end := start + int64(size)
		if end > capacity {
			l.failures.Add(1)
			return nil, &AllocError{Allocator: "linear", Size: size, Align: align, Err: ErrOutOfMemory}
		}
		if l.offset.CompareAndSwap(old, end) {
			l.allocs.Add(1)
			return l.buf[start:end:end], nil
		}
	}
}

// Reallocate implements Allocator. The most recent allocation is resized in
// place when it still fits; anything else is copied to a fresh allocation.
func (l *Linear) Reallocate(b []byte, oldSize, newSize, align int) ([]byte, error) {
	if cap(b) == 0 {
		return l.Allocate(newSize, align)
	}
	if newSize == 0 {
		return nil, nil
	}
	if newSize < 0 {
		return nil, &AllocError{Allocator: "linear", Size: newSize, Align: align, Err: ErrInvalidSize}
	}
	oldSize = min(oldSize, len(b))

	if start, ok := l.offsetOf(b); ok && (align == 0 || mem.IsAligned(b, align)) {
		oldEnd := start + int64(oldSize)
		newEnd := start + int64(newSize)
		if newEnd <= int64(len(l.buf)) && l.offset.CompareAndSwap(oldEnd, newEnd) {
			return l.buf[start:newEnd:newEnd], nil
		}
	}

	return reallocByCopy(l, b, oldSize, newSize, align)
}

func (l *Linear) offsetOf(b []byte) (int64, bool) {
	addr := mem.Addr(b)
	if addr < l.base || addr >= l.base+uintptr(len(l.buf)) {
		return 0, false
	}
	return int64(addr - l.base), true
}

// Release is a no-op; memory is reclaimed by Reset.
func (l *Linear) Release([]byte) {}

// Reset rewinds the allocator to empty.
func (l *Linear) Reset() {
	l.offset.Store(0)
}

// Owns reports whether b lies inside the allocator's buffer.
func (l *Linear) Owns(b []byte) bool {
	_, ok := l.offsetOf(b)
	return ok
}

// Used returns the number of bytes consumed, including padding.
func (l *Linear) Used() int {
	return int(l.offset.Load())
}

// Capacity returns the buffer size.
func (l *Linear) Capacity() int {
	return len(l.buf)
}

// Remaining returns the bytes left before alignment.
func (l *Linear) Remaining() int {
	return len(l.buf) - l.Used()
}

// Allocations returns the number of successful allocations since creation.
func (l *Linear) Allocations() uint64 {
	return l.allocs.Load()
}

// Failures returns the number of allocations refused for lack of space.
func (l *Linear) Failures() uint64 {
	return l.failures.Load()
}

// OffHeap reports whether the buffer lives in an anonymous mapping.
func (l *Linear) OffHeap() bool {
	return l.mapping != nil
}

// Close releases the buffer. Slices handed out earlier must not be used
// afterwards.
func (l *Linear) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.offset.Store(0)
	if l.mapping != nil {
		return l.mapping.Close()
	}
	return nil
}
