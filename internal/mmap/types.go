package mmap

import "errors"

// Advice is a paging hint for a mapping.
type Advice uint8

const (
	// AdviceNormal clears any earlier hint.
	AdviceNormal Advice = iota
	// AdviceSequential suits assets that are read front to back once, such as
	// a file copied into a staging buffer.
	AdviceSequential
	// AdviceRandom disables read-ahead.
	AdviceRandom
	// AdviceWillNeed asks the kernel to page the range in ahead of use.
	AdviceWillNeed
	// AdviceDontNeed lets the kernel drop the pages. Anonymous mappings read
	// back as zeros afterwards.
	AdviceDontNeed
)

var (
	// ErrClosed is returned by operations on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for negative or zero anonymous sizes and
	// files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrInvalidOffset is returned by ReadAt for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
