package loader

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives per-operation loader measurements.
// Implement it to feed an external monitoring system.
type MetricsCollector interface {
	// RecordLoad is called once per load attempt by the thread that held
	// loading rights. bytes is the raw size read from the source.
	RecordLoad(duration time.Duration, bytes int, err error)

	// RecordSkip is called when a queued job found the asset already
	// loading or loaded.
	RecordSkip()

	// RecordUnload is called after each Unload.
	RecordUnload(err error)
}

// NoopMetricsCollector discards every measurement.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, int, error) {}
func (NoopMetricsCollector) RecordSkip()                          {}
func (NoopMetricsCollector) RecordUnload(error)                   {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	LoadBytes      atomic.Int64
	SkipCount      atomic.Int64
	UnloadCount    atomic.Int64
	UnloadErrors   atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, bytes int, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	b.LoadBytes.Add(int64(bytes))
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSkip implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSkip() {
	b.SkipCount.Add(1)
}

// RecordUnload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnload(err error) {
	b.UnloadCount.Add(1)
	if err != nil {
		b.UnloadErrors.Add(1)
	}
}

// MetricsStats is a point-in-time copy of BasicMetricsCollector.
type MetricsStats struct {
	LoadCount    int64
	LoadErrors   int64
	LoadAvgNanos int64
	LoadBytes    int64
	SkipCount    int64
	UnloadCount  int64
	UnloadErrors int64
}

// GetStats returns the current counters.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	s := MetricsStats{
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadBytes:    b.LoadBytes.Load(),
		SkipCount:    b.SkipCount.Load(),
		UnloadCount:  b.UnloadCount.Load(),
		UnloadErrors: b.UnloadErrors.Load(),
	}
	if s.LoadCount > 0 {
		s.LoadAvgNanos = b.LoadTotalNanos.Load() / s.LoadCount
	}
	return s
}
