package memory

import (
	"sync"
	"sync/atomic"
)

// DefaultTrackingCapacity is the number of outstanding allocations a Table
// records when no capacity is configured.
const DefaultTrackingCapacity = 1 << 16

// Record describes one outstanding allocation.
type Record struct {
	Addr  uintptr
	Size  int
	Align int

	// buf keeps heap allocations reachable until they are released.
	buf []byte
	// owner is the tracked allocator that requested the allocation, if any.
	owner *Tracked
}

// Table maps allocation addresses to their records.
//
// Capacity is a soft limit: Put refuses new records once it is reached and
// counts the refusal as an overflow. An address is present at most once.
type Table struct {
	mu        sync.Mutex
	capacity  int
	records   map[uintptr]Record
	overflows atomic.Uint64
}

// NewTable creates a table holding at most capacity records.
// A capacity <= 0 selects DefaultTrackingCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultTrackingCapacity
	}
	return &Table{
		capacity: capacity,
		records:  make(map[uintptr]Record, min(capacity, 1024)),
	}
}

// Put records rec. It replaces an existing record for the same address and
// returns false if the table is full.
func (t *Table) Put(rec Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[rec.Addr]; !ok && len(t.records) >= t.capacity {
		t.overflows.Add(1)
		return false
	}
	t.records[rec.Addr] = rec
	return true
}

// Lookup returns the record for addr without removing it.
func (t *Table) Lookup(addr uintptr) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[addr]
	return rec, ok
}

// Take removes and returns the record for addr.
func (t *Table) Take(addr uintptr) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[addr]
	if ok {
		delete(t.records, addr)
	}
	return rec, ok
}

// Resize updates the size of an existing record.
func (t *Table) Resize(addr uintptr, size int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[addr]
	if !ok {
		return false
	}
	rec.Size = size
	t.records[addr] = rec
	return true
}

// Drain removes every record and returns the sum of their sizes.
func (t *Table) Drain() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int64
	for addr, rec := range t.records {
		total += int64(rec.Size)
		delete(t.records, addr)
	}
	return total
}

// drainOwner removes every record owned by o and returns the sum of their sizes.
func (t *Table) drainOwner(o *Tracked) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int64
	for addr, rec := range t.records {
		if rec.owner == o {
			total += int64(rec.Size)
			delete(t.records, addr)
		}
	}
	return total
}

// Len returns the number of outstanding records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Capacity returns the configured capacity.
func (t *Table) Capacity() int {
	return t.capacity
}

// Overflows returns how many records were refused because the table was full.
func (t *Table) Overflows() uint64 {
	return t.overflows.Load()
}
