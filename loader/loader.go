package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kiln/internal/budget"
	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/platform"
	"github.com/hupe1980/kiln/registry"
	"github.com/hupe1980/kiln/source"
	"github.com/hupe1980/kiln/tracker"
)

var (
	// ErrNotStarted is returned by Submit before Start or after Stop.
	ErrNotStarted = errors.New("loader: not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("loader: already started")
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("loader: queue full")
	// ErrLoadFailed is returned by Load when the asset ended in the Error state.
	ErrLoadFailed = errors.New("loader: load failed")
	// ErrNotLoaded is returned by Unload for assets that are not Loaded.
	ErrNotLoaded = errors.New("loader: not loaded")
)

// Stats holds cumulative loader counters.
type Stats struct {
	Loaded    uint64 // Loads that reached Loaded
	Failed    uint64 // Loads that reached Error
	Skipped   uint64 // Jobs dropped because another thread held loading rights
	BytesRead uint64 // Raw bytes read from the source
}

// Loader drives assets through the loading state machine.
type Loader struct {
	reg *registry.Registry
	trk *tracker.Tracker
	mem *memory.System
	src source.Source
	dec Decoder

	opts   options
	budget *budget.Budget
	ids    platform.ThreadIDs

	mu       sync.Mutex
	jobs     chan string
	cancel   context.CancelFunc
	group    *errgroup.Group
	resident map[string]*registry.Entry
	failures map[string]error

	loaded    atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	bytesRead atomic.Uint64
}

// New creates a loader. It does not start any goroutines.
func New(reg *registry.Registry, trk *tracker.Tracker, mem *memory.System, src source.Source, dec Decoder, opts ...Option) *Loader {
	o := options{
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		metrics:   NoopMetricsCollector{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Loader{
		reg:  reg,
		trk:  trk,
		mem:  mem,
		src:  src,
		dec:  dec,
		opts: o,
		budget: budget.New(budget.Config{
			MaxWorkers:    int64(o.workers),
			IOBytesPerSec: o.ioBytesPerSec,
		}),
		resident: make(map[string]*registry.Entry),
		failures: make(map[string]error),
	}
}

// Start launches the worker goroutines. They run until Stop or until ctx
// is cancelled.
func (l *Loader) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jobs != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string, l.opts.queueSize)

	for range l.opts.workers {
		thread := l.ids.Next()
		g.Go(func() error {
			l.work(gctx, jobs, thread)
			return nil
		})
	}

	l.jobs = jobs
	l.cancel = cancel
	l.group = g

	l.opts.logger.Debug("loader started",
		zap.Int("workers", l.opts.workers),
		zap.Int("queue", l.opts.queueSize),
	)
	return nil
}

// Stop cancels in-flight loads and waits for the workers to exit. Queued
// jobs that never started are dropped and stay Unloaded.
func (l *Loader) Stop() error {
	l.mu.Lock()
	cancel, g := l.cancel, l.group
	l.jobs, l.cancel, l.group = nil, nil, nil
	l.mu.Unlock()

	if g == nil {
		return nil
	}
	cancel()
	return g.Wait()
}

func (l *Loader) work(ctx context.Context, jobs <-chan string, thread platform.ThreadID) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-jobs:
			l.process(ctx, id, thread)
		}
	}
}

func (l *Loader) process(ctx context.Context, id string, thread platform.ThreadID) {
	if !l.trk.TryAcquireLoading(id, thread) {
		l.skipped.Add(1)
		l.opts.metrics.RecordSkip()
		l.opts.logger.Debug("load skipped", zap.String("id", id), zap.Uint64("thread", thread))
		return
	}
	_ = l.load(ctx, id, thread)
}

// Submit queues id for background loading without blocking.
func (l *Loader) Submit(id string) error {
	if err := l.trk.RegisterID(id); err != nil {
		return err
	}

	l.mu.Lock()
	jobs := l.jobs
	l.mu.Unlock()

	if jobs == nil {
		return ErrNotStarted
	}
	select {
	case jobs <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Load makes sure id is Loaded and returns the entry with one reference
// owned by the caller. If no other thread is loading id, the load runs on
// the calling goroutine.
func (l *Loader) Load(ctx context.Context, id string) (*registry.Entry, error) {
	if err := l.trk.RegisterID(id); err != nil {
		return nil, err
	}
	thread := l.ids.Next()

	for {
		if state, _ := l.trk.Get(id); state == tracker.Loaded {
			if e, ok := l.reg.Acquire(id); ok {
				return e, nil
			}
			// Unload may have started between Get and Acquire.
			if state, _ := l.trk.Get(id); state == tracker.Loaded {
				return nil, fmt.Errorf("%w: %s: loaded but not registered", ErrLoadFailed, id)
			}
		}

		if l.trk.TryAcquireLoading(id, thread) {
			if err := l.load(ctx, id, thread); err != nil {
				return nil, err
			}
			continue
		}

		state, err := l.trk.WaitForAny(ctx, id, 0, tracker.Loaded, tracker.Error, tracker.Unloaded)
		if err != nil {
			return nil, err
		}
		if state == tracker.Error {
			return nil, l.failure(id)
		}
	}
}

// LoadAll loads ids concurrently, at most one per worker at a time. On
// failure every reference acquired so far is released.
func (l *Loader) LoadAll(ctx context.Context, ids []string) ([]*registry.Entry, error) {
	entries := make([]*registry.Entry, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.workers)
	for i, id := range ids {
		g.Go(func() error {
			e, err := l.Load(gctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			entries[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, e := range entries {
			if e != nil {
				_ = l.reg.Release(e)
			}
		}
		return nil, err
	}
	return entries, nil
}

// load runs one load for a thread that holds loading rights. The resource
// always leaves Loading, either to Loaded or to Error.
func (l *Loader) load(ctx context.Context, id string, thread platform.ThreadID) (err error) {
	start := time.Now()
	n, err := l.fetchAndPublish(ctx, id)
	defer func() {
		l.opts.metrics.RecordLoad(time.Since(start), n, err)
	}()

	if err == nil {
		err = l.trk.Set(id, tracker.Loaded, thread)
		if err == nil {
			l.loaded.Add(1)
			l.clearFailure(id)
			return nil
		}
		l.dropResident(id)
	}

	l.failed.Add(1)
	l.recordFailure(id, err)
	if setErr := l.trk.Set(id, tracker.Error, thread); setErr != nil && !errors.Is(setErr, tracker.ErrNotFound) {
		l.opts.logger.Error("failed to publish load error", zap.String("id", id), zap.Error(setErr))
	}
	l.opts.logger.Warn("load failed", zap.String("id", id), zap.Uint64("thread", thread), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, id, err)
}

func (l *Loader) fetchAndPublish(ctx context.Context, id string) (int, error) {
	if err := l.budget.AcquireWorker(ctx); err != nil {
		return 0, err
	}
	defer l.budget.ReleaseWorker()

	assets := l.mem.AllocatorFor(memory.CategoryAssets)
	if assets == nil {
		return 0, memory.ErrNotInitialized
	}

	raw, err := l.src.Read(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := l.budget.WaitIO(ctx, len(raw)); err != nil {
		return len(raw), err
	}
	l.bytesRead.Add(uint64(len(raw))) //nolint:gosec // len is non-negative

	data, comp, err := decompress(raw)
	if err != nil {
		return len(raw), err
	}

	staging, release, err := l.stage(data)
	if err != nil {
		return len(raw), err
	}
	defer release()

	payload, size, dtor, err := l.dec.Decode(ctx, id, staging, assets)
	if err != nil {
		return len(raw), err
	}
	if payload == nil {
		return len(raw), fmt.Errorf("decoder returned no payload")
	}

	e, created, err := l.reg.Insert(id, payload, size, dtor)
	if err != nil {
		if dtor != nil {
			dtor.Destroy(payload)
		}
		return len(raw), err
	}
	if !created && dtor != nil {
		dtor.Destroy(payload)
	}

	l.mu.Lock()
	prev := l.resident[id]
	l.resident[id] = e
	l.mu.Unlock()
	if prev != nil {
		_ = l.reg.Release(prev)
	}

	l.opts.logger.Debug("asset decoded",
		zap.String("id", id),
		zap.Stringer("compression", comp),
		zap.Int("raw", len(raw)),
		zap.Int("size", size),
		zap.Bool("created", created),
	)
	return len(raw), nil
}

// stage copies data into Temporary-category memory for the decoder.
func (l *Loader) stage(data []byte) ([]byte, func(), error) {
	if len(data) == 0 {
		return data, func() {}, nil
	}
	tmp := l.mem.AllocatorFor(memory.CategoryTemporary)
	if tmp == nil {
		return nil, nil, memory.ErrNotInitialized
	}
	buf, err := tmp.Allocate(len(data), 0)
	if err != nil {
		return nil, nil, err
	}
	copy(buf, data)
	return buf, func() { tmp.Release(buf) }, nil
}

// Unload moves a Loaded asset through Unloading back to Unloaded and drops
// the loader's resident reference. References held by callers stay valid
// until they are released.
func (l *Loader) Unload(id string) error {
	const thread = platform.NoThread

	if err := l.trk.Set(id, tracker.Unloading, thread); err != nil {
		if errors.Is(err, tracker.ErrInvalidTransition) {
			return fmt.Errorf("%w: %s", ErrNotLoaded, id)
		}
		return err
	}
	l.dropResident(id)
	err := l.trk.Set(id, tracker.Unloaded, thread)
	l.opts.metrics.RecordUnload(err)
	return err
}

// UnloadAll unloads every asset the loader holds a resident reference for.
func (l *Loader) UnloadAll() error {
	l.mu.Lock()
	ids := make([]string, 0, len(l.resident))
	for id := range l.resident {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := l.Unload(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) dropResident(id string) {
	l.mu.Lock()
	e := l.resident[id]
	delete(l.resident, id)
	l.mu.Unlock()

	if e != nil {
		_ = l.reg.Release(e)
	}
}

func (l *Loader) recordFailure(id string, err error) {
	l.mu.Lock()
	l.failures[id] = err
	l.mu.Unlock()
}

func (l *Loader) clearFailure(id string) {
	l.mu.Lock()
	delete(l.failures, id)
	l.mu.Unlock()
}

func (l *Loader) failure(id string) error {
	l.mu.Lock()
	err := l.failures[id]
	l.mu.Unlock()

	if err == nil {
		return fmt.Errorf("%w: %s", ErrLoadFailed, id)
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, id, err)
}

// Resident returns the number of assets the loader holds a reference for.
func (l *Loader) Resident() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resident)
}

// Stats returns the cumulative counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Loaded:    l.loaded.Load(),
		Failed:    l.failed.Load(),
		Skipped:   l.skipped.Load(),
		BytesRead: l.bytesRead.Load(),
	}
}
