package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsCollector(t *testing.T) {
	sc := NewStatsCollector()

	sc.RecordAlloc(CategoryAssets, 100)
	sc.RecordAlloc(CategoryAssets, 50)
	sc.RecordFree(CategoryAssets, 100)
	sc.RecordAlloc(CategoryRenderer, 10)

	snap := sc.Snapshot()
	assets := snap.Category(CategoryAssets)
	assert.Equal(t, uint64(150), assets.TotalAllocated)
	assert.Equal(t, uint64(50), assets.CurrentUsage)
	assert.Equal(t, uint64(150), assets.PeakUsage)
	assert.Equal(t, uint64(2), assets.AllocationCount)
	assert.Equal(t, uint64(1), assets.FreeCount)

	assert.Equal(t, uint64(60), snap.Total.CurrentUsage)
	assert.Equal(t, uint64(160), snap.Total.TotalAllocated)
	assert.Equal(t, uint64(10), snap.Category(CategoryRenderer).CurrentUsage)
	assert.Equal(t, CategoryStats{}, snap.Category(CategoryCount))
}

func TestStatsCollector_UnderflowClamps(t *testing.T) {
	sc := NewStatsCollector()

	sc.RecordAlloc(CategoryEngine, 10)
	sc.RecordFree(CategoryEngine, 25)

	s := sc.Snapshot().Category(CategoryEngine)
	assert.Equal(t, uint64(0), s.CurrentUsage)
	assert.Equal(t, uint64(1), s.FreeCount)
	assert.Equal(t, uint64(10), s.PeakUsage)
}

func TestStatsCollector_Realloc(t *testing.T) {
	sc := NewStatsCollector()

	sc.RecordAlloc(CategoryTemporary, 64)
	sc.RecordRealloc(CategoryTemporary, 64, 256)
	sc.RecordRealloc(CategoryTemporary, 256, 32)

	s := sc.Snapshot().Category(CategoryTemporary)
	assert.Equal(t, uint64(32), s.CurrentUsage)
	assert.Equal(t, uint64(256), s.PeakUsage)
	assert.Equal(t, uint64(64+256+32), s.TotalAllocated)
}

func TestStatsCollector_InvalidCategoryIsUnknown(t *testing.T) {
	sc := NewStatsCollector()
	sc.RecordAlloc(Category(200), 7)

	assert.Equal(t, uint64(7), sc.Snapshot().Category(CategoryUnknown).CurrentUsage)
}

func TestStatsCollector_Concurrent(t *testing.T) {
	sc := NewStatsCollector()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(c Category) {
			defer wg.Done()
			for range 1000 {
				sc.RecordAlloc(c, 4)
				sc.RecordFree(c, 4)
			}
		}(Category(i % int(CategoryCount)))
	}
	wg.Wait()

	snap := sc.Snapshot()
	assert.Equal(t, uint64(0), snap.Total.CurrentUsage)
	assert.Equal(t, uint64(8000), snap.Total.AllocationCount)
	assert.Equal(t, uint64(8000), snap.Total.FreeCount)

	sc.Reset()
	assert.Equal(t, Stats{}, sc.Snapshot())
}
