package memory

import (
	"sync"

	"github.com/hupe1980/kiln/internal/conv"
)

// CategoryStats holds the counters for one category.
type CategoryStats struct {
	TotalAllocated  uint64 // Cumulative bytes allocated
	CurrentUsage    uint64 // Bytes currently resident, clamped at zero
	PeakUsage       uint64 // Running maximum of CurrentUsage
	AllocationCount uint64
	FreeCount       uint64
}

func (s *CategoryStats) alloc(n uint64) {
	s.TotalAllocated += n
	s.CurrentUsage += n
	s.AllocationCount++
	if s.CurrentUsage > s.PeakUsage {
		s.PeakUsage = s.CurrentUsage
	}
}

func (s *CategoryStats) free(n uint64) {
	s.CurrentUsage = conv.SaturatingSub(s.CurrentUsage, n)
	s.FreeCount++
}

// Stats is a point-in-time snapshot of all categories.
type Stats struct {
	Categories [CategoryCount]CategoryStats
	// Total aggregates every category. Its peak is the peak of the sum,
	// not the sum of per-category peaks.
	Total CategoryStats
}

// Category returns the counters for c. Unknown categories yield zero stats.
func (s Stats) Category(c Category) CategoryStats {
	if !c.Valid() {
		return CategoryStats{}
	}
	return s.Categories[c]
}

// StatsCollector accumulates per-category counters.
// Updates are serialized so a snapshot never observes a torn record.
type StatsCollector struct {
	mu    sync.Mutex
	cats  [CategoryCount]CategoryStats
	total CategoryStats
}

// NewStatsCollector creates an empty collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// RecordAlloc attributes an allocation of n bytes to c.
func (sc *StatsCollector) RecordAlloc(c Category, n int) {
	if !c.Valid() {
		c = CategoryUnknown
	}
	bytes := clampBytes(n)

	sc.mu.Lock()
	sc.cats[c].alloc(bytes)
	sc.total.alloc(bytes)
	sc.mu.Unlock()
}

// RecordFree attributes a release of n bytes to c.
func (sc *StatsCollector) RecordFree(c Category, n int) {
	if !c.Valid() {
		c = CategoryUnknown
	}
	bytes := clampBytes(n)

	sc.mu.Lock()
	sc.cats[c].free(bytes)
	sc.total.free(bytes)
	sc.mu.Unlock()
}

// RecordRealloc records a resize from oldSize to newSize as one free and one
// allocation, applied atomically with respect to snapshots.
func (sc *StatsCollector) RecordRealloc(c Category, oldSize, newSize int) {
	if !c.Valid() {
		c = CategoryUnknown
	}
	oldBytes, newBytes := clampBytes(oldSize), clampBytes(newSize)

	sc.mu.Lock()
	sc.cats[c].free(oldBytes)
	sc.cats[c].alloc(newBytes)
	sc.total.free(oldBytes)
	sc.total.alloc(newBytes)
	sc.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (sc *StatsCollector) Snapshot() Stats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return Stats{Categories: sc.cats, Total: sc.total}
}

// Reset zeroes every counter.
func (sc *StatsCollector) Reset() {
	sc.mu.Lock()
	sc.cats = [CategoryCount]CategoryStats{}
	sc.total = CategoryStats{}
	sc.mu.Unlock()
}

func clampBytes(n int) uint64 {
	v, err := conv.IntToUint64(n)
	if err != nil {
		return 0
	}
	return v
}
