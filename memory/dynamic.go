package memory

import (
	"github.com/hupe1980/kiln/internal/budget"
	"github.com/hupe1980/kiln/internal/mem"
)

// Dynamic is a heap-backed allocator that records every outstanding
// allocation in a Table.
//
// Recorded allocations stay reachable through the table until Release or
// Reset, even if the caller drops its last reference.
type Dynamic struct {
	table  *Table
	budget *budget.Budget
}

// DynamicOption configures a Dynamic allocator.
type DynamicOption func(*Dynamic)

// WithTable shares an existing tracking table.
func WithTable(t *Table) DynamicOption {
	return func(d *Dynamic) {
		d.table = t
	}
}

// withBudget charges every allocation against b.
func withBudget(b *budget.Budget) DynamicOption {
	return func(d *Dynamic) {
		d.budget = b
	}
}

// NewDynamic creates a heap allocator.
func NewDynamic(opts ...DynamicOption) *Dynamic {
	d := &Dynamic{}
	for _, opt := range opts {
		opt(d)
	}
	if d.table == nil {
		d.table = NewTable(0)
	}
	return d
}

// Table returns the tracking table.
func (d *Dynamic) Table() *Table {
	return d.table
}

// Allocate implements Allocator.
func (d *Dynamic) Allocate(size, align int) ([]byte, error) {
	return d.allocate(size, align, nil)
}

func (d *Dynamic) allocate(size, align int, owner *Tracked) ([]byte, error) {
	align, err := normalizeRequest("dynamic", size, align)
	if err != nil {
		return nil, err
	}

	if err := d.budget.Reserve(int64(size)); err != nil {
		return nil, &AllocError{Allocator: "dynamic", Size: size, Align: align, Err: ErrOutOfMemory}
	}

	b := mem.AllocAligned(size, align)
	d.table.Put(Record{Addr: mem.Addr(b), Size: size, Align: align, buf: b, owner: owner})
	return b, nil
}

// Reallocate implements Allocator. Shrinking and growing within the
// existing capacity are done in place.
func (d *Dynamic) Reallocate(b []byte, oldSize, newSize, align int) ([]byte, error) {
	return d.reallocate(b, oldSize, newSize, align, nil)
}

func (d *Dynamic) reallocate(b []byte, oldSize, newSize, align int, owner *Tracked) ([]byte, error) {
	if cap(b) == 0 {
		return d.allocate(newSize, align, owner)
	}
	if newSize == 0 {
		d.Release(b)
		return nil, nil
	}
	if newSize < 0 {
		return nil, &AllocError{Allocator: "dynamic", Size: newSize, Align: align, Err: ErrInvalidSize}
	}

	addr := mem.Addr(b)
	rec, tracked := d.table.Lookup(addr)
	if tracked {
		oldSize = rec.Size
		if align == 0 {
			align = rec.Align
		}
	}

	if tracked && newSize <= cap(b) && (align == 0 || mem.IsAligned(b, align)) {
		if err := d.resizeBudget(oldSize, newSize); err != nil {
			return nil, &AllocError{Allocator: "dynamic", Size: newSize, Align: align, Err: ErrOutOfMemory}
		}
		d.table.Resize(addr, newSize)
		return b[:newSize], nil
	}

	nb, err := d.allocate(newSize, align, owner)
	if err != nil {
		return nil, err
	}
	copy(nb, b[:min(oldSize, newSize, len(b))])
	d.Release(b)
	return nb, nil
}

func (d *Dynamic) resizeBudget(oldSize, newSize int) error {
	switch {
	case newSize > oldSize:
		return d.budget.Reserve(int64(newSize - oldSize))
	case newSize < oldSize:
		d.budget.Return(int64(oldSize - newSize))
	}
	return nil
}

// Release implements Allocator.
func (d *Dynamic) Release(b []byte) {
	if cap(b) == 0 {
		return
	}
	size, ok := d.take(b)
	if !ok {
		return
	}
	d.budget.Return(int64(size))
}

// take removes the record for b. A miss is attributed by len(b) only while
// the table has refused records; otherwise b is stale or foreign.
func (d *Dynamic) take(b []byte) (int, bool) {
	if rec, ok := d.table.Take(mem.Addr(b)); ok {
		return rec.Size, true
	}
	if d.unrecorded() {
		return len(b), true
	}
	return 0, false
}

// Reset drops every recorded allocation.
func (d *Dynamic) Reset() {
	d.budget.Return(d.table.Drain())
}

// releaseOwned drops every allocation requested through owner.
func (d *Dynamic) releaseOwned(owner *Tracked) int64 {
	n := d.table.drainOwner(owner)
	d.budget.Return(n)
	return n
}

// unrecorded reports whether an allocation missing from the table may still
// be live.
func (d *Dynamic) unrecorded() bool {
	return d.table.Overflows() > 0
}

// SizeOf returns the recorded size of an outstanding allocation.
func (d *Dynamic) SizeOf(b []byte) (int, bool) {
	if cap(b) == 0 {
		return 0, false
	}
	rec, ok := d.table.Lookup(mem.Addr(b))
	return rec.Size, ok
}
