package source

import (
	"context"
	"errors"

	"github.com/hupe1980/kiln/internal/cache"
)

// ErrNotListable is returned by Cached.List when the wrapped source cannot
// enumerate its assets.
var ErrNotListable = errors.New("source: not listable")

// Cached keeps recently read assets in a byte-bounded LRU so that reloading
// an unloaded asset does not touch the wrapped source again.
type Cached struct {
	inner Source
	cache cache.Cache
}

// NewCached wraps inner with a cache of at most capacity bytes.
func NewCached(inner Source, capacity int64) *Cached {
	return &Cached{
		inner: inner,
		cache: cache.NewSharded(capacity, nil),
	}
}

// Read implements Source. The returned slice is a copy.
func (c *Cached) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b, ok := c.cache.Get(name); ok {
		return append([]byte(nil), b...), nil
	}

	b, err := c.inner.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(name, append([]byte(nil), b...))
	return b, nil
}

// List implements Lister when the wrapped source does.
func (c *Cached) List(ctx context.Context, prefix string) ([]string, error) {
	l, ok := c.inner.(Lister)
	if !ok {
		return nil, ErrNotListable
	}
	return l.List(ctx, prefix)
}

// Invalidate drops name from the cache.
func (c *Cached) Invalidate(name string) {
	c.cache.Delete(name)
}

// Size returns the cached bytes.
func (c *Cached) Size() int64 {
	return c.cache.Size()
}

// Stats returns the cache hit and miss counters.
func (c *Cached) Stats() (hits, misses int64) {
	return c.cache.Stats()
}
