package loader

import "go.uber.org/zap"

const (
	// DefaultWorkers is the number of worker goroutines.
	DefaultWorkers = 4
	// DefaultQueueSize is the capacity of the submission queue.
	DefaultQueueSize = 256
)

type options struct {
	workers       int
	queueSize     int
	ioBytesPerSec int64
	metrics       MetricsCollector
	logger        *zap.Logger
}

// Option configures a Loader.
type Option func(*options)

// WithWorkers sets the number of worker goroutines and the number of loads
// that may run at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithIORate caps the bytes read from the source per second. 0 is unlimited.
func WithIORate(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioBytesPerSec = bytesPerSec
	}
}

// WithMetricsCollector sets the collector notified after each load and
// unload. Passing nil disables collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
