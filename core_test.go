package kiln

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/platform"
	"github.com/hupe1980/kiln/registry"
	"github.com/hupe1980/kiln/source"
	"github.com/hupe1980/kiln/tracker"
)

func openTest(t *testing.T, opts ...Option) *Core {
	t.Helper()
	c, err := Open(append([]Option{WithHeapLinear(), WithLinearCapacity(64 << 10)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpen(t *testing.T) {
	c := openTest(t, WithRegistryBuckets(17))

	assert.True(t, c.Memory().Initialized())
	assert.True(t, c.Registry().Initialized())
	assert.Equal(t, 17, c.Registry().BucketCount())
	assert.Equal(t, 64<<10, c.Memory().LinearAllocator().Capacity())
	assert.NotNil(t, c.Tracker())
	assert.NotNil(t, c.Handles())
	assert.False(t, c.Closed())

	engine := c.Stats().Memory.Category(memory.CategoryEngine)
	assert.Positive(t, engine.CurrentUsage, "registry buckets are charged to the engine category")
}

func TestOpen_UnwindsOnFailure(t *testing.T) {
	t.Run("registry cannot allocate", func(t *testing.T) {
		_, err := Open(WithHeapLinear(), WithMemoryLimit(64))
		require.ErrorIs(t, err, ErrNotInitialized)
		require.ErrorIs(t, err, ErrOutOfMemory)
	})

	t.Run("invalid bucket count", func(t *testing.T) {
		_, err := Open(WithHeapLinear(), WithTrackerBuckets(-1))
		require.ErrorIs(t, err, ErrNotInitialized)
		require.ErrorIs(t, err, tracker.ErrInvalidArgument)
	})
}

func TestCore_Close(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c, err := Open(WithHeapLinear(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = c.Registry().Create("tex:leak", "payload", 8, nil)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())

	leaks := logs.FilterMessage("resource leaked at shutdown").All()
	require.Len(t, leaks, 1)
	assert.Equal(t, "registry", leaks[0].LoggerName)

	assert.False(t, c.Registry().Initialized())
	assert.False(t, c.Memory().Initialized())
	assert.Equal(t, uint64(0), c.Stats().Memory.Total.CurrentUsage)

	_, err = c.NewLoader(source.NewMemory(), loader.Raw())
	require.ErrorIs(t, err, ErrClosed)

	var nilCore *Core
	require.NoError(t, nilCore.Close())
}

func TestCore_RegistryAndTrackerTogether(t *testing.T) {
	clock := platform.NewFakeClock(time.Unix(1_700_000_000, 0))
	c := openTest(t, WithClock(clock))

	e, err := c.Registry().Create("mesh:hero", "verts", 128, nil)
	require.NoError(t, err)
	require.NoError(t, c.Tracker().Register(e))

	require.True(t, c.Tracker().TryAcquireLoading("mesh:hero", 7))
	clock.Advance(time.Second)
	require.NoError(t, c.Tracker().Set("mesh:hero", tracker.Loaded, 7))

	info, ok := c.Tracker().Info("mesh:hero")
	require.True(t, ok)
	assert.Equal(t, clock.Now(), info.Changed)

	s := c.Stats()
	assert.Equal(t, 1, s.Resources)
	assert.Equal(t, 1, s.States.Loaded)

	require.NoError(t, c.Registry().Release(e))
	assert.Equal(t, 0, c.Stats().Resources)
}

func TestCore_Handles(t *testing.T) {
	c := openTest(t, WithHandleCapacity(4))

	h := c.Handles().Allocate()
	assert.True(t, c.Handles().Valid(h))
	assert.Equal(t, 1, c.Stats().Handles)
	assert.True(t, c.Handles().FreeHandle(h))
	assert.False(t, c.Handles().Valid(h))
}

func TestCore_NewLoader(t *testing.T) {
	src := source.NewMemory()
	src.Put("snd/step", []byte("pcm"))

	mc := &loader.BasicMetricsCollector{}
	c := openTest(t, WithLoaderOptions(loader.WithWorkers(2), loader.WithMetricsCollector(mc)))

	l, err := c.NewLoader(src, loader.Raw())
	require.NoError(t, err)
	require.NoError(t, l.Start(t.Context()))
	defer func() { require.NoError(t, l.Stop()) }()

	var wg sync.WaitGroup
	entries := make(chan *registry.Entry, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := l.Load(context.Background(), "snd/step")
			if assert.NoError(t, err) {
				entries <- e
			}
		}()
	}
	wg.Wait()
	close(entries)

	for e := range entries {
		assert.Equal(t, []byte("pcm"), e.Payload())
		require.NoError(t, c.Registry().Release(e))
	}
	assert.Equal(t, int64(1), mc.GetStats().LoadCount)
	assert.Equal(t, uint64(3), c.Stats().Memory.Category(memory.CategoryAssets).CurrentUsage)

	require.NoError(t, l.UnloadAll())
	assert.Equal(t, uint64(0), c.Stats().Memory.Category(memory.CategoryAssets).CurrentUsage)
}
