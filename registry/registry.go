package registry

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/hupe1980/kiln/internal/hash"
	"github.com/hupe1980/kiln/memory"
)

// DefaultBucketCount is used when Init is called with 0.
const DefaultBucketCount = 1031

var (
	entryRecordSize  = int(unsafe.Sizeof(Entry{}))
	bucketRecordSize = int(unsafe.Sizeof((*Entry)(nil)))
)

// Registry maps identifiers to reference-counted entries.
type Registry struct {
	mu          sync.Mutex
	buckets     []*Entry
	total       int
	initialized bool
	tableMem    []byte

	alloc  memory.Allocator
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithAllocator charges the bucket table and per-entry bookkeeping to a.
func WithAllocator(a memory.Allocator) Option {
	return func(r *Registry) {
		r.alloc = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an uninitialized registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init allocates the bucket table. A bucketCount of 0 selects DefaultBucketCount.
func (r *Registry) Init(bucketCount int) error {
	if bucketCount < 0 {
		return fmt.Errorf("%w: bucket count %d", ErrInvalidArgument, bucketCount)
	}
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}

	mem, err := r.charge(bucketCount * bucketRecordSize)
	if err != nil {
		return fmt.Errorf("%w: bucket table: %w", ErrNotInitialized, err)
	}

	r.tableMem = mem
	r.buckets = make([]*Entry, bucketCount)
	r.total = 0
	r.initialized = true

	r.logger.Debug("registry initialized", zap.Int("buckets", bucketCount))
	return nil
}

// Shutdown destroys every remaining entry. Entries that still hold
// references are reported as leaks before being destroyed.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return
	}

	var entries []*Entry
	for i, head := range r.buckets {
		for e := head; e != nil; e = e.next {
			entries = append(entries, e)
		}
		r.buckets[i] = nil
	}
	tableMem := r.tableMem
	r.buckets = nil
	r.tableMem = nil
	r.total = 0
	r.initialized = false
	r.mu.Unlock()

	for _, e := range entries {
		if n := e.refs.Swap(0); n > 0 {
			r.logger.Warn("resource leaked at shutdown",
				zap.String("id", e.id),
				zap.Uint32("refs", n),
			)
		}
		e.next = nil
		if e.destroy() {
			r.discharge(e.record)
		}
	}
	r.discharge(tableMem)

	r.logger.Debug("registry shut down", zap.Int("destroyed", len(entries)))
}

// Create registers payload under id with one reference. If id already
// exists, the existing entry is acquired and returned instead; payload and
// dtor are not stored.
func (r *Registry) Create(id string, payload any, size int, dtor Destructor) (*Entry, error) {
	e, _, err := r.Insert(id, payload, size, dtor)
	return e, err
}

// Insert is Create that also reports whether payload was stored. When it
// returns false the caller still owns payload.
func (r *Registry) Insert(id string, payload any, size int, dtor Destructor) (*Entry, bool, error) {
	if id == "" || payload == nil {
		return nil, false, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, false, ErrNotInitialized
	}

	b := r.bucket(id)
	if e := findLocked(r.buckets[b], id); e != nil {
		e.refs.Add(1)
		return e, false, nil
	}

	rec, err := r.charge(entryRecordSize + len(id))
	if err != nil {
		return nil, false, fmt.Errorf("registry: create %q: %w", id, err)
	}

	e := &Entry{
		id:      id,
		payload: payload,
		size:    size,
		dtor:    dtor,
		next:    r.buckets[b],
		record:  rec,
	}
	e.refs.Store(1)
	r.buckets[b] = e
	r.total++
	return e, true, nil
}

// Acquire increments the count of the entry registered under id.
func (r *Registry) Acquire(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, false
	}
	e := findLocked(r.buckets[r.bucket(id)], id)
	if e == nil {
		return nil, false
	}
	e.refs.Add(1)
	return e, true
}

// Release drops one reference. The entry is removed and its destructor run
// when the count reaches zero.
func (r *Registry) Release(e *Entry) error {
	if e == nil {
		return ErrInvalidArgument
	}

	for {
		n := e.refs.Load()
		if n == 0 {
			return ErrNotReferenced
		}
		if n == 1 {
			break
		}
		if e.refs.CompareAndSwap(n, n-1) {
			return nil
		}
	}

	r.mu.Lock()
	// Acquire is serialized by the lock, but lock-free releases are not.
	for {
		n := e.refs.Load()
		if n == 0 {
			r.mu.Unlock()
			return ErrNotReferenced
		}
		if n == 1 {
			break
		}
		if e.refs.CompareAndSwap(n, n-1) {
			r.mu.Unlock()
			return nil
		}
	}
	e.refs.Store(0)
	if r.initialized && r.unlinkLocked(e) {
		r.total--
	}
	r.mu.Unlock()

	if e.destroy() {
		r.discharge(e.record)
	}
	return nil
}

// Count returns the reference count of e, or 0 for a nil entry.
func (r *Registry) Count(e *Entry) uint32 {
	if e == nil {
		return 0
	}
	return e.refs.Load()
}

// Total returns the number of registered entries.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return false
	}
	return findLocked(r.buckets[r.bucket(id)], id) != nil
}

// Initialized reports whether Init has run and Shutdown has not.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// BucketCount returns the number of buckets, or 0 before Init.
func (r *Registry) BucketCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

func (r *Registry) bucket(id string) int {
	return int(hash.String(id) % uint32(len(r.buckets))) //nolint:gosec // bucket count fits in uint32
}

func findLocked(head *Entry, id string) *Entry {
	for e := head; e != nil; e = e.next {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (r *Registry) unlinkLocked(target *Entry) bool {
	b := r.bucket(target.id)
	for p := &r.buckets[b]; *p != nil; p = &(*p).next {
		if *p == target {
			*p = target.next
			target.next = nil
			return true
		}
	}
	return false
}

func (r *Registry) charge(n int) ([]byte, error) {
	if r.alloc == nil || n <= 0 {
		return nil, nil
	}
	return r.alloc.Allocate(n, 0)
}

func (r *Registry) discharge(b []byte) {
	if r.alloc != nil && b != nil {
		r.alloc.Release(b)
	}
}
