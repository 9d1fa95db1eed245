package memory

import "github.com/hupe1980/kiln/internal/mem"

// Tracked wraps a backing allocator and attributes every operation to one
// category.
//
// Over a Dynamic allocator the sizes come from the dynamic tracking table,
// where each record is tagged with the Tracked that requested it. Over any
// other allocator Tracked keeps a table of its own.
type Tracked struct {
	backing  Allocator
	dynamic  *Dynamic // non-nil when backing is a Dynamic
	category Category
	stats    *StatsCollector
	table    *Table // nil when dynamic is set
}

// NewTracked creates a tracked allocator. A nil stats collector disables
// attribution but keeps the size bookkeeping.
func NewTracked(backing Allocator, category Category, stats *StatsCollector) *Tracked {
	if !category.Valid() {
		category = CategoryUnknown
	}
	t := &Tracked{
		backing:  backing,
		category: category,
		stats:    stats,
	}
	if d, ok := backing.(*Dynamic); ok {
		t.dynamic = d
	} else {
		t.table = NewTable(0)
	}
	return t
}

// Category returns the attributed category.
func (t *Tracked) Category() Category {
	return t.category
}

// Backing returns the wrapped allocator.
func (t *Tracked) Backing() Allocator {
	return t.backing
}

// Allocate implements Allocator.
func (t *Tracked) Allocate(size, align int) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if t.dynamic != nil {
		b, err = t.dynamic.allocate(size, align, t)
	} else {
		b, err = t.backing.Allocate(size, align)
	}
	if err != nil {
		return nil, err
	}

	if t.table != nil {
		t.table.Put(Record{Addr: mem.Addr(b), Size: size, Align: align})
	}
	if t.stats != nil {
		t.stats.RecordAlloc(t.category, size)
	}
	return b, nil
}

// Reallocate implements Allocator.
func (t *Tracked) Reallocate(b []byte, oldSize, newSize, align int) ([]byte, error) {
	if cap(b) == 0 {
		return t.Allocate(newSize, align)
	}
	if newSize == 0 {
		t.Release(b)
		return nil, nil
	}

	oldSize = t.lookupSize(b, oldSize)

	var (
		nb  []byte
		err error
	)
	if t.dynamic != nil {
		nb, err = t.dynamic.reallocate(b, oldSize, newSize, align, t)
	} else {
		nb, err = t.backing.Reallocate(b, oldSize, newSize, align)
	}
	if err != nil {
		return nil, err
	}

	if t.table != nil {
		t.table.Take(mem.Addr(b))
		t.table.Put(Record{Addr: mem.Addr(nb), Size: newSize, Align: align})
	}
	if t.stats != nil {
		t.stats.RecordRealloc(t.category, oldSize, newSize)
	}
	return nb, nil
}

// Release implements Allocator. Allocations that were never recorded because
// the table was full are attributed by their slice length. Releasing a slice
// twice, or one that is not outstanding, is ignored.
func (t *Tracked) Release(b []byte) {
	if cap(b) == 0 {
		return
	}

	size := len(b)
	if t.table != nil {
		if rec, ok := t.table.Take(mem.Addr(b)); ok {
			size = rec.Size
		} else if t.table.Overflows() == 0 {
			return
		}
	} else if n, ok := t.dynamic.SizeOf(b); ok {
		size = n
	} else if !t.dynamic.unrecorded() {
		return
	}

	t.backing.Release(b)
	if t.stats != nil {
		t.stats.RecordFree(t.category, size)
	}
}

// Reset discards every outstanding allocation made through t and reports
// the bytes as freed. Over a Dynamic allocator only t's own allocations are
// dropped; any other backing allocator is reset as a whole.
func (t *Tracked) Reset() {
	var n int64
	if t.dynamic != nil {
		n = t.dynamic.releaseOwned(t)
	} else {
		n = t.table.Drain()
		t.backing.Reset()
	}
	if n > 0 && t.stats != nil {
		t.stats.RecordFree(t.category, int(n))
	}
}

func (t *Tracked) lookupSize(b []byte, def int) int {
	if t.table != nil {
		if rec, ok := t.table.Lookup(mem.Addr(b)); ok {
			return rec.Size
		}
		return def
	}
	if n, ok := t.dynamic.SizeOf(b); ok {
		return n
	}
	return def
}
