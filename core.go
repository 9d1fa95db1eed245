package kiln

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hupe1980/kiln/handle"
	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/registry"
	"github.com/hupe1980/kiln/source"
	"github.com/hupe1980/kiln/tracker"
)

// Core owns the shared subsystems of one engine instance.
type Core struct {
	opts options

	mem     *memory.System
	reg     *registry.Registry
	trk     *tracker.Tracker
	handles *handle.Manager

	mu     sync.Mutex
	closed bool
}

// Stats is a combined snapshot of every subsystem.
type Stats struct {
	Memory            memory.Stats
	MemoryInUse       int64
	TrackingOverflows uint64
	Resources         int
	States            tracker.Stats
	Handles           int
}

// Open initializes the memory system, the registry and the tracker, in that
// order. If any step fails the earlier ones are shut down again and the
// error wraps ErrNotInitialized.
func Open(optFns ...Option) (*Core, error) {
	o := applyOptions(optFns)

	memOpts := []memory.Option{
		memory.WithTrackingCapacity(o.trackingCapacity),
		memory.WithMemoryLimit(o.memoryLimit),
		memory.WithLogger(o.logger.Named("memory")),
	}
	if o.heapLinear {
		memOpts = append(memOpts, memory.WithHeapLinear())
	}
	mem := memory.NewSystem(memOpts...)
	if err := mem.Init(o.linearCapacity); err != nil {
		return nil, fmt.Errorf("%w: memory: %w", ErrNotInitialized, err)
	}

	reg := registry.New(
		registry.WithAllocator(mem.AllocatorFor(memory.CategoryEngine)),
		registry.WithLogger(o.logger.Named("registry")),
	)
	if err := reg.Init(o.registryBuckets); err != nil {
		_ = mem.Shutdown()
		return nil, fmt.Errorf("%w: registry: %w", ErrNotInitialized, err)
	}

	trk := tracker.New(
		tracker.WithClock(o.clock),
		tracker.WithLogger(o.logger.Named("tracker")),
	)
	if err := trk.Init(o.trackerBuckets); err != nil {
		reg.Shutdown()
		_ = mem.Shutdown()
		return nil, fmt.Errorf("%w: tracker: %w", ErrNotInitialized, err)
	}

	o.logger.Info("core opened",
		zap.Int("registry_buckets", reg.BucketCount()),
		zap.Int("linear_capacity", mem.LinearAllocator().Capacity()),
		zap.Int64("memory_limit", o.memoryLimit),
	)

	return &Core{
		opts:    o,
		mem:     mem,
		reg:     reg,
		trk:     trk,
		handles: handle.NewManager(o.handleCapacity),
	}, nil
}

// Memory returns the allocator subsystem.
func (c *Core) Memory() *memory.System { return c.mem }

// Registry returns the resource registry.
func (c *Core) Registry() *registry.Registry { return c.reg }

// Tracker returns the resource state tracker.
func (c *Core) Tracker() *tracker.Tracker { return c.trk }

// Handles returns the shared handle manager.
func (c *Core) Handles() *handle.Manager { return c.handles }

// Logger returns the logger the core was opened with.
func (c *Core) Logger() *zap.Logger { return c.opts.logger }

// Closed reports whether Close has been called.
func (c *Core) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Stats returns a combined snapshot. Memory statistics remain readable
// after Close.
func (c *Core) Stats() Stats {
	return Stats{
		Memory:            c.mem.Stats(),
		MemoryInUse:       c.mem.MemoryInUse(),
		TrackingOverflows: c.mem.TrackingOverflows(),
		Resources:         c.reg.Total(),
		States:            c.trk.Stats(),
		Handles:           c.handles.Len(),
	}
}

// NewLoader creates a loader bound to this core. Options given to Open via
// WithLoaderOptions apply first, then opts.
func (c *Core) NewLoader(src source.Source, dec loader.Decoder, opts ...loader.Option) (*loader.Loader, error) {
	if c.Closed() {
		return nil, ErrClosed
	}

	all := make([]loader.Option, 0, len(c.opts.loaderOptions)+len(opts)+1)
	all = append(all, loader.WithLogger(c.opts.logger.Named("loader")))
	all = append(all, c.opts.loaderOptions...)
	all = append(all, opts...)

	return loader.New(c.reg, c.trk, c.mem, src, dec, all...), nil
}
