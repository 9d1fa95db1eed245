package budget

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the memory limit.
var ErrMemoryLimitExceeded = errors.New("budget: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for reserved memory.
	// If 0, usage is tracked but never refused.
	MemoryLimitBytes int64

	// MaxWorkers is the number of concurrently active loader workers.
	// If 0, defaults to 1.
	MaxWorkers int64

	// IOBytesPerSec caps asset read throughput. If 0, unlimited.
	IOBytesPerSec int64
}

// Budget tracks and limits shared resources.
type Budget struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
	memPeak atomic.Int64

	workers *semaphore.Weighted

	io *rate.Limiter
}

// New creates a budget from cfg.
func New(cfg Config) *Budget {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	b := &Budget{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		b.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOBytesPerSec > 0 {
		b.io = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), int(cfg.IOBytesPerSec))
	}

	return b
}

// Reserve records n bytes as in use. It fails with ErrMemoryLimitExceeded
// instead of blocking when the limit would be exceeded.
func (b *Budget) Reserve(n int64) error {
	if b == nil || n <= 0 {
		return nil
	}

	if b.memSem != nil && !b.memSem.TryAcquire(n) {
		return ErrMemoryLimitExceeded
	}

	used := b.memUsed.Add(n)
	for {
		peak := b.memPeak.Load()
		if used <= peak || b.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// Return gives n previously reserved bytes back.
func (b *Budget) Return(n int64) {
	if b == nil || n <= 0 {
		return
	}

	// Clamp to what is actually reserved; releasing more than is held
	// would panic the semaphore.
	for {
		used := b.memUsed.Load()
		give := min(n, used)
		if give <= 0 {
			return
		}
		if b.memUsed.CompareAndSwap(used, used-give) {
			if b.memSem != nil {
				b.memSem.Release(give)
			}
			return
		}
	}
}

// InUse returns the currently reserved bytes.
func (b *Budget) InUse() int64 {
	if b == nil {
		return 0
	}
	return b.memUsed.Load()
}

// Peak returns the highest reservation level observed.
func (b *Budget) Peak() int64 {
	if b == nil {
		return 0
	}
	return b.memPeak.Load()
}

// Limit returns the configured memory limit in bytes (0 if unlimited).
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.cfg.MemoryLimitBytes
}

// MaxWorkers returns the configured number of worker slots.
func (b *Budget) MaxWorkers() int64 {
	if b == nil {
		return 0
	}
	return b.cfg.MaxWorkers
}

// AcquireWorker blocks until a worker slot is free or ctx is done.
func (b *Budget) AcquireWorker(ctx context.Context) error {
	if b == nil {
		return nil
	}
	return b.workers.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (b *Budget) TryAcquireWorker() bool {
	if b == nil {
		return true
	}
	return b.workers.TryAcquire(1)
}

// ReleaseWorker frees a worker slot.
func (b *Budget) ReleaseWorker() {
	if b == nil {
		return
	}
	b.workers.Release(1)
}

// WaitIO blocks until the IO limiter admits n bytes. Requests larger than
// the limiter's burst are admitted in burst-sized steps.
func (b *Budget) WaitIO(ctx context.Context, n int) error {
	if b == nil || b.io == nil || n <= 0 {
		return nil
	}

	burst := b.io.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := b.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
