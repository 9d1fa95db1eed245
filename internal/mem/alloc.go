package mem

import (
	"unsafe"
)

// DefaultAlignment is the alignment used when callers pass 0.
const DefaultAlignment = 8

// CacheLineSize is the alignment used for large standalone buffers.
const CacheLineSize = 64

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

// Padding returns the number of bytes needed to move addr to the next
// multiple of align.
func Padding(addr uintptr, align int) int {
	a := uintptr(align)
	return int((a - (addr & (a - 1))) & (a - 1))
}

// Addr returns the address of the first byte of b, or 0 for an empty slice.
func Addr(b []byte) uintptr {
	if cap(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) //nolint:gosec // address is used as an identity key only
}

// IsAligned reports whether b starts at a multiple of align.
func IsAligned(b []byte, align int) bool {
	if cap(b) == 0 {
		return true
	}
	return Addr(b)%uintptr(align) == 0
}

// AllocAligned allocates size zeroed bytes starting at a multiple of align.
// It returns nil when size <= 0 or align is not a power of two.
//
// The slice over-allocates by align-1 bytes; the underlying array is kept
// alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 || !IsPowerOfTwo(align) {
		return nil
	}
	if align == 1 {
		return make([]byte, size)
	}

	buf := make([]byte, size+align-1)
	off := Padding(Addr(buf), align)
	return buf[off : off+size : off+size]
}
