package kiln

import (
	"go.uber.org/zap"

	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/platform"
)

// DefaultHandleCapacity is the initial slot capacity of the shared handle
// manager.
const DefaultHandleCapacity = 1024

type options struct {
	linearCapacity   int
	trackingCapacity int
	memoryLimit      int64
	heapLinear       bool
	registryBuckets  int
	trackerBuckets   int
	handleCapacity   int
	clock            platform.Clock
	logger           *zap.Logger
	loaderOptions    []loader.Option
}

// Option configures Open.
type Option func(*options)

// WithLinearCapacity sets the capacity of the global linear allocator.
// 0 selects memory.DefaultLinearCapacity.
func WithLinearCapacity(bytes int) Option {
	return func(o *options) {
		o.linearCapacity = bytes
	}
}

// WithTrackingCapacity sets how many outstanding dynamic allocations are
// recorded for size lookup.
func WithTrackingCapacity(n int) Option {
	return func(o *options) {
		o.trackingCapacity = n
	}
}

// WithMemoryLimit caps the bytes held by the dynamic allocator. 0 means
// unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithHeapLinear keeps the global linear allocator on the Go heap instead of
// an anonymous mapping.
func WithHeapLinear() Option {
	return func(o *options) {
		o.heapLinear = true
	}
}

// WithRegistryBuckets sets the registry bucket count. 0 selects
// registry.DefaultBucketCount.
func WithRegistryBuckets(n int) Option {
	return func(o *options) {
		o.registryBuckets = n
	}
}

// WithTrackerBuckets sets the tracker sizing hint. 0 selects
// tracker.DefaultBucketCount.
func WithTrackerBuckets(n int) Option {
	return func(o *options) {
		o.trackerBuckets = n
	}
}

// WithHandleCapacity sets the initial capacity of the shared handle manager.
func WithHandleCapacity(n int) Option {
	return func(o *options) {
		o.handleCapacity = n
	}
}

// WithClock sets the clock used for state-change timestamps.
func WithClock(c platform.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger configures structured logging. Each subsystem receives a named
// child logger. Pass nil to disable logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// WithLoaderOptions sets defaults applied to every loader created by
// Core.NewLoader, before the options passed to NewLoader itself.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(o *options) {
		o.loaderOptions = append(o.loaderOptions, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		handleCapacity: DefaultHandleCapacity,
		clock:          platform.SystemClock{},
		logger:         zap.NewNop(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
