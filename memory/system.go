package memory

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hupe1980/kiln/internal/budget"
)

// System owns the default allocators and the global statistics.
// The zero value is not usable; create one with NewSystem.
type System struct {
	mu          sync.RWMutex
	opts        systemOptions
	initialized bool

	stats   *StatsCollector
	budget  *budget.Budget
	dynamic *Dynamic
	linear  *Linear
	tracked [CategoryCount]*Tracked
	linears map[*Linear]struct{}
}

// NewSystem creates an uninitialized subsystem.
func NewSystem(opts ...Option) *System {
	o := systemOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &System{
		opts:  o,
		stats: NewStatsCollector(),
	}
}

// Init creates the default dynamic allocator, a default linear allocator of
// linearCapacity bytes (0 selects DefaultLinearCapacity) and one tracked
// allocator per category.
func (s *System) Init(linearCapacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}

	lin, err := NewLinear(linearCapacity, s.linearOptions()...)
	if err != nil {
		return err
	}

	s.budget = budget.New(budget.Config{MemoryLimitBytes: s.opts.memoryLimit})
	s.dynamic = NewDynamic(
		WithTable(NewTable(s.opts.trackingCapacity)),
		withBudget(s.budget),
	)
	s.linear = lin
	for c := Category(0); c < CategoryCount; c++ {
		s.tracked[c] = NewTracked(s.dynamic, c, s.stats)
	}
	s.linears = make(map[*Linear]struct{})
	s.stats.Reset()
	s.initialized = true

	s.opts.logger.Debug("memory subsystem initialized",
		zap.Int("linear_capacity", lin.Capacity()),
		zap.Bool("linear_off_heap", lin.OffHeap()),
		zap.Int("tracking_capacity", s.dynamic.Table().Capacity()),
		zap.Int64("memory_limit", s.opts.memoryLimit),
	)
	return nil
}

func (s *System) linearOptions() []LinearOption {
	if s.opts.heapLinear {
		return []LinearOption{WithHeapBacking()}
	}
	return nil
}

// Initialized reports whether Init has succeeded and Shutdown has not run.
func (s *System) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Shutdown destroys every allocator the subsystem created. It is safe to
// call more than once. Statistics survive until the next Init or ResetStats.
func (s *System) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	var errs []error
	for l := range s.linears {
		errs = append(errs, l.Close())
	}
	errs = append(errs, s.linear.Close())

	if n := s.dynamic.Table().Len(); n > 0 {
		s.opts.logger.Warn("memory subsystem shut down with outstanding allocations",
			zap.Int("allocations", n),
			zap.Int64("bytes", s.budget.InUse()),
		)
	}
	if n := s.dynamic.Table().Overflows(); n > 0 {
		s.opts.logger.Warn("tracking table overflowed", zap.Uint64("refused", n))
	}
	s.dynamic.Reset()

	s.dynamic = nil
	s.linear = nil
	s.linears = nil
	s.tracked = [CategoryCount]*Tracked{}
	s.initialized = false

	return errors.Join(errs...)
}

// DynamicAllocator returns the default heap allocator, or nil before Init.
func (s *System) DynamicAllocator() *Dynamic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dynamic
}

// LinearAllocator returns the default linear allocator, or nil before Init.
func (s *System) LinearAllocator() *Linear {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linear
}

// AllocatorFor returns the tracked allocator for c. Invalid categories map to
// CategoryUnknown. It returns nil before Init.
func (s *System) AllocatorFor(c Category) Allocator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil
	}
	if !c.Valid() {
		c = CategoryUnknown
	}
	return s.tracked[c]
}

// Stats returns a snapshot of the per-category statistics.
func (s *System) Stats() Stats {
	return s.stats.Snapshot()
}

// ResetStats zeroes every statistic.
func (s *System) ResetStats() {
	s.stats.Reset()
}

// MemoryInUse returns the bytes held by the dynamic allocator.
func (s *System) MemoryInUse() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.budget.InUse()
}

// TrackingOverflows returns how many dynamic allocations went unrecorded.
func (s *System) TrackingOverflows() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dynamic == nil {
		return 0
	}
	return s.dynamic.Table().Overflows()
}

// NewLinear creates an additional linear allocator owned by the subsystem.
func (s *System) NewLinear(capacity int) (*Linear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	l, err := NewLinear(capacity, s.linearOptions()...)
	if err != nil {
		return nil, err
	}
	s.linears[l] = struct{}{}
	return l, nil
}

// DestroyLinear closes a linear allocator created by NewLinear. The default
// linear allocator cannot be destroyed this way.
func (s *System) DestroyLinear(l *Linear) error {
	if l == nil {
		return nil
	}

	s.mu.Lock()
	_, owned := s.linears[l]
	delete(s.linears, l)
	s.mu.Unlock()

	if !owned {
		return ErrNotOwned
	}
	return l.Close()
}
