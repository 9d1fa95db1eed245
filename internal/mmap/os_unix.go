//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var madvise = [...]int{
	AdviceNormal:     unix.MADV_NORMAL,
	AdviceSequential: unix.MADV_SEQUENTIAL,
	AdviceRandom:     unix.MADV_RANDOM,
	AdviceWillNeed:   unix.MADV_WILLNEED,
	AdviceDontNeed:   unix.MADV_DONTNEED,
}

// osMap maps a file read-only. Asset files are never written through.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	return mapRegion(int(f.Fd()), size, unix.PROT_READ, unix.MAP_SHARED)
}

// osMapAnon maps private zero-filled memory for allocator buffers.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return mapRegion(-1, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func mapRegion(fd, size, prot, flags int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(fd, 0, size, prot, flags)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osAdvise(data []byte, advice Advice) error {
	if len(data) == 0 || int(advice) >= len(madvise) {
		return nil
	}
	// EINVAL means the range is not page aligned. Hints are optional.
	if err := unix.Madvise(data, madvise[advice]); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
