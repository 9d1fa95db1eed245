package memory

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kiln/internal/mem"
)

var (
	// ErrOutOfMemory is returned when an allocator cannot satisfy a request.
	ErrOutOfMemory = errors.New("memory: out of memory")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("memory: invalid size")
	// ErrInvalidAlignment is returned when alignment is not a power of two.
	ErrInvalidAlignment = errors.New("memory: alignment must be a power of two")
	// ErrClosed is returned by allocators that have been closed or destroyed.
	ErrClosed = errors.New("memory: allocator closed")
	// ErrNotInitialized is returned when the subsystem is used before Init.
	ErrNotInitialized = errors.New("memory: subsystem not initialized")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("memory: subsystem already initialized")
	// ErrNotOwned is returned when destroying an allocator the subsystem did not create.
	ErrNotOwned = errors.New("memory: allocator not owned by subsystem")
)

// DefaultAlignment is used when callers pass an alignment of 0.
const DefaultAlignment = mem.DefaultAlignment

// Allocator is the interface shared by all allocation strategies.
//
// Slices returned by Allocate and Reallocate have len == size. Passing a
// slice to Release or Reallocate that did not come from the same allocator
// is a programming error; implementations tolerate it without corrupting
// their own state.
type Allocator interface {
	// Allocate returns size bytes aligned to align (0 selects DefaultAlignment).
	Allocate(size, align int) ([]byte, error)
	// Reallocate resizes b to newSize, preserving the first min(oldSize, newSize) bytes.
	// A nil b behaves like Allocate; newSize == 0 behaves like Release.
	Reallocate(b []byte, oldSize, newSize, align int) ([]byte, error)
	// Release returns b to the allocator.
	Release(b []byte)
	// Reset discards all outstanding allocations.
	Reset()
}

// AllocError describes a failed allocation.
type AllocError struct {
	Allocator string
	Size      int
	Align     int
	Err       error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("%s: allocate %d bytes (align %d): %v", e.Allocator, e.Size, e.Align, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

func normalizeRequest(name string, size, align int) (int, error) {
	if align == 0 {
		align = DefaultAlignment
	}
	if size <= 0 {
		return align, &AllocError{Allocator: name, Size: size, Align: align, Err: ErrInvalidSize}
	}
	if !mem.IsPowerOfTwo(align) {
		return align, &AllocError{Allocator: name, Size: size, Align: align, Err: ErrInvalidAlignment}
	}
	return align, nil
}

// reallocByCopy is the generic Reallocate fallback: allocate, copy, release.
func reallocByCopy(a Allocator, b []byte, oldSize, newSize, align int) ([]byte, error) {
	nb, err := a.Allocate(newSize, align)
	if err != nil {
		return nil, err
	}
	copy(nb, b[:min(oldSize, newSize, len(b))])
	a.Release(b)
	return nb, nil
}
