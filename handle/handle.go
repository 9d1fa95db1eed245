// Package handle provides generation-counted handles for pooled slots.
//
// A Handle pairs a slot index with the generation the slot had when it was
// handed out. Freeing a slot bumps its generation, so any copy of the old
// handle stops validating even after the index is reused.
package handle

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Handle identifies one allocation of a slot. The zero Handle is never valid.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.Generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index, h.Generation)
}

// Manager hands out slot indices with generation counters.
//
// Generations start at 1 and skip 0 on wrap-around, so 0 always means
// "never allocated". Freed indices are reused LIFO.
type Manager struct {
	mu          sync.Mutex
	generations []uint32
	freeList    []uint32
	live        *roaring.Bitmap
}

// NewManager creates a manager with room for capacity slots before growing.
func NewManager(capacity int) *Manager {
	if capacity < 0 {
		capacity = 0
	}
	return &Manager{
		generations: make([]uint32, 0, capacity),
		freeList:    make([]uint32, 0, capacity/4),
		live:        roaring.New(),
	}
}

// Allocate returns a live handle, reusing a freed index when one is available.
func (m *Manager) Allocate() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idx uint32
	if n := len(m.freeList); n > 0 {
		idx = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
	} else {
		idx = uint32(len(m.generations)) //nolint:gosec // slot count is bounded by memory
		m.generations = append(m.generations, 1)
	}
	m.live.Add(idx)
	return Handle{Index: idx, Generation: m.generations[idx]}
}

// Free releases the slot if generation matches the live allocation.
// A stale or repeated free returns false and changes nothing.
func (m *Manager) Free(index, generation uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.validLocked(index, generation) || !m.live.Contains(index) {
		return false
	}

	next := m.generations[index] + 1
	if next == 0 {
		next = 1
	}
	m.generations[index] = next
	m.live.Remove(index)
	m.freeList = append(m.freeList, index)
	return true
}

// FreeHandle is Free for a Handle.
func (m *Manager) FreeHandle(h Handle) bool {
	return m.Free(h.Index, h.Generation)
}

// IsValid reports whether index is in range and its stored generation equals
// generation. A freed slot matches the generation it will hand out next.
func (m *Manager) IsValid(index, generation uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked(index, generation)
}

// Valid is IsValid for a Handle.
func (m *Manager) Valid(h Handle) bool {
	return m.IsValid(h.Index, h.Generation)
}

func (m *Manager) validLocked(index, generation uint32) bool {
	return generation != 0 &&
		int(index) < len(m.generations) &&
		m.generations[index] == generation
}

// Generation returns the stored generation of index, or 0 if the index was
// never allocated.
func (m *Manager) Generation(index uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(index) >= len(m.generations) {
		return 0
	}
	return m.generations[index]
}

// Len returns the number of live handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.live.GetCardinality()) //nolint:gosec // bounded by slot count
}

// Cap returns the number of slots ever created.
func (m *Manager) Cap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generations)
}

// Each calls fn for every live handle in index order until fn returns false.
// fn must not call back into the manager.
func (m *Manager) Each(fn func(Handle) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if !fn(Handle{Index: idx, Generation: m.generations[idx]}) {
			return
		}
	}
}
