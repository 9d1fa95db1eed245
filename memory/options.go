package memory

import "go.uber.org/zap"

type systemOptions struct {
	trackingCapacity int
	memoryLimit      int64
	heapLinear       bool
	logger           *zap.Logger
}

// Option configures a System.
type Option func(*systemOptions)

// WithTrackingCapacity sets how many outstanding dynamic allocations are
// recorded. 0 selects DefaultTrackingCapacity.
func WithTrackingCapacity(n int) Option {
	return func(o *systemOptions) {
		o.trackingCapacity = n
	}
}

// WithMemoryLimit caps the bytes the dynamic allocator may hold at once.
// 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *systemOptions) {
		o.memoryLimit = bytes
	}
}

// WithHeapLinear keeps linear allocator buffers on the Go heap.
func WithHeapLinear() Option {
	return func(o *systemOptions) {
		o.heapLinear = true
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *systemOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
