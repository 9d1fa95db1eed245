package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/registry"
	"github.com/hupe1980/kiln/source"
	"github.com/hupe1980/kiln/tracker"
)

type fixture struct {
	reg *registry.Registry
	trk *tracker.Tracker
	mem *memory.System
	src *source.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := memory.NewSystem(memory.WithHeapLinear())
	require.NoError(t, mem.Init(64<<10))
	reg := registry.New(registry.WithAllocator(mem.AllocatorFor(memory.CategoryEngine)))
	require.NoError(t, reg.Init(0))
	trk := tracker.New()
	require.NoError(t, trk.Init(0))

	t.Cleanup(func() {
		trk.Shutdown()
		reg.Shutdown()
		_ = mem.Shutdown()
	})
	return &fixture{reg: reg, trk: trk, mem: mem, src: source.NewMemory()}
}

func (f *fixture) loader(dec Decoder, opts ...Option) *Loader {
	return New(f.reg, f.trk, f.mem, f.src, dec, opts...)
}

func zstdFrame(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func lz4Frame(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoader_LoadRaw(t *testing.T) {
	f := newFixture(t)
	f.src.Put("tex/rock", []byte("rock pixels"))
	l := f.loader(Raw())

	e, err := l.Load(t.Context(), "tex/rock")
	require.NoError(t, err)
	assert.Equal(t, "rock pixels", string(e.Payload().([]byte)))
	assert.Equal(t, uint32(2), e.Count(), "resident reference plus caller reference")
	assert.True(t, f.trk.IsSafeToAccess("tex/rock"))

	assets := f.mem.Stats().Category(memory.CategoryAssets)
	assert.Equal(t, uint64(len("rock pixels")), assets.CurrentUsage)
	tmp := f.mem.Stats().Category(memory.CategoryTemporary)
	assert.Equal(t, uint64(0), tmp.CurrentUsage, "staging buffer must be released")
	assert.Equal(t, uint64(len("rock pixels")), tmp.PeakUsage)

	again, err := l.Load(t.Context(), "tex/rock")
	require.NoError(t, err)
	assert.Same(t, e, again)
	assert.Equal(t, uint64(1), l.Stats().Loaded)

	require.NoError(t, f.reg.Release(e))
	require.NoError(t, f.reg.Release(again))
	require.NoError(t, l.Unload("tex/rock"))

	s, _ := f.trk.Get("tex/rock")
	assert.Equal(t, tracker.Unloaded, s)
	assert.False(t, f.reg.Exists("tex/rock"))
	assert.Equal(t, uint64(0), f.mem.Stats().Category(memory.CategoryAssets).CurrentUsage)
}

func TestLoader_Decompression(t *testing.T) {
	payload := bytes.Repeat([]byte("kiln asset "), 100)

	for name, raw := range map[string][]byte{
		"zstd": zstdFrame(t, payload),
		"lz4":  lz4Frame(t, payload),
		"none": payload,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.src.Put("a", raw)

			e, err := f.loader(Raw()).Load(t.Context(), "a")
			require.NoError(t, err)
			assert.Equal(t, payload, e.Payload())
			require.NoError(t, f.reg.Release(e))
		})
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, CompressionZstd, Detect([]byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}))
	assert.Equal(t, CompressionLZ4, Detect([]byte{0x04, 0x22, 0x4d, 0x18}))
	assert.Equal(t, CompressionNone, Detect([]byte{0x28, 0xb5}))
	assert.Equal(t, "zstd", CompressionZstd.String())
	assert.Equal(t, "none", CompressionNone.String())
}

func TestLoader_FailureEndsInError(t *testing.T) {
	f := newFixture(t)
	l := f.loader(Raw())

	_, err := l.Load(t.Context(), "missing")
	require.ErrorIs(t, err, ErrLoadFailed)
	require.ErrorIs(t, err, source.ErrNotFound)

	s, ok := f.trk.Get("missing")
	require.True(t, ok)
	assert.Equal(t, tracker.Error, s)
	assert.Equal(t, uint64(1), l.Stats().Failed)

	t.Run("retry from error succeeds", func(t *testing.T) {
		f.src.Put("missing", []byte("now here"))
		e, err := l.Load(t.Context(), "missing")
		require.NoError(t, err)
		require.NoError(t, f.reg.Release(e))
	})
}

func TestLoader_DecoderError(t *testing.T) {
	f := newFixture(t)
	f.src.Put("bad", []byte("garbage"))
	boom := errors.New("bad header")

	l := f.loader(DecoderFunc(func(context.Context, string, []byte, memory.Allocator) (any, int, registry.Destructor, error) {
		return nil, 0, nil, boom
	}))

	_, err := l.Load(t.Context(), "bad")
	require.ErrorIs(t, err, boom)
	assert.False(t, f.reg.Exists("bad"))
	assert.Equal(t, uint64(0), f.mem.Stats().Category(memory.CategoryTemporary).CurrentUsage)
}

func TestLoader_ConcurrentLoadDecodesOnce(t *testing.T) {
	f := newFixture(t)
	f.src.Put("shared", []byte("data"))

	var decodes atomic.Int32
	release := make(chan struct{})
	dec := DecoderFunc(func(ctx context.Context, id string, raw []byte, alloc memory.Allocator) (any, int, registry.Destructor, error) {
		decodes.Add(1)
		<-release
		return Raw().Decode(ctx, id, raw, alloc)
	})
	l := f.loader(dec, WithWorkers(8))

	const callers = 8
	var (
		wg      sync.WaitGroup
		entries = make([]*registry.Entry, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := l.Load(t.Context(), "shared")
			if assert.NoError(t, err) {
				entries[i] = e
			}
		}()
	}

	require.Eventually(t, func() bool { return decodes.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), decodes.Load())
	for _, e := range entries {
		require.NotNil(t, e)
		assert.Same(t, entries[0], e)
	}
	assert.Equal(t, uint32(callers+1), entries[0].Count())
}

func TestLoader_WaiterSeesFailure(t *testing.T) {
	f := newFixture(t)
	f.src.Put("flaky", []byte("x"))

	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	dec := DecoderFunc(func(context.Context, string, []byte, memory.Allocator) (any, int, registry.Destructor, error) {
		once.Do(func() { close(entered) })
		<-release
		return nil, 0, nil, errors.New("corrupt")
	})
	l := f.loader(dec, WithWorkers(2))

	errs := make(chan error, 2)
	go func() {
		_, err := l.Load(t.Context(), "flaky")
		errs <- err
	}()
	<-entered
	go func() {
		_, err := l.Load(t.Context(), "flaky")
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	for range 2 {
		require.ErrorIs(t, <-errs, ErrLoadFailed)
	}
}

func TestLoader_SubmitAndWorkers(t *testing.T) {
	f := newFixture(t)
	for i := range 10 {
		f.src.Put(fmt.Sprintf("snd/%d", i), []byte{byte(i)})
	}
	l := f.loader(Raw(), WithWorkers(3), WithQueueSize(16))

	require.ErrorIs(t, l.Submit("snd/0"), ErrNotStarted)

	require.NoError(t, l.Start(t.Context()))
	require.ErrorIs(t, l.Start(t.Context()), ErrAlreadyStarted)

	for i := range 10 {
		require.NoError(t, l.Submit(fmt.Sprintf("snd/%d", i)))
	}
	for i := range 10 {
		require.NoError(t, f.trk.WaitFor(t.Context(), fmt.Sprintf("snd/%d", i), tracker.Loaded, 5*time.Second))
	}
	assert.Equal(t, 10, l.Resident())

	// Already loaded: the worker loses TryAcquireLoading and skips.
	require.NoError(t, l.Submit("snd/0"))
	require.Eventually(t, func() bool { return l.Stats().Skipped == 1 }, time.Second, time.Millisecond)

	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())
	require.ErrorIs(t, l.Submit("snd/1"), ErrNotStarted)

	require.NoError(t, l.UnloadAll())
	assert.Equal(t, 0, l.Resident())
	assert.Equal(t, 0, f.reg.Total())
}

func TestLoader_QueueFull(t *testing.T) {
	f := newFixture(t)
	block := make(chan struct{})
	dec := DecoderFunc(func(ctx context.Context, id string, raw []byte, alloc memory.Allocator) (any, int, registry.Destructor, error) {
		<-block
		return Raw().Decode(ctx, id, raw, alloc)
	})
	for i := range 4 {
		f.src.Put(fmt.Sprintf("q/%d", i), []byte("q"))
	}
	l := f.loader(dec, WithWorkers(1), WithQueueSize(1))
	require.NoError(t, l.Start(t.Context()))
	defer func() {
		close(block)
		require.NoError(t, l.Stop())
	}()

	require.NoError(t, l.Submit("q/0"))
	require.Eventually(t, func() bool {
		s, _ := f.trk.Get("q/0")
		return s == tracker.Loading
	}, time.Second, time.Millisecond)

	require.NoError(t, l.Submit("q/1"))
	require.ErrorIs(t, l.Submit("q/2"), ErrQueueFull)
}

func TestLoader_StopNeverLeavesLoading(t *testing.T) {
	f := newFixture(t)
	f.src.Put("slow", []byte("s"))

	entered := make(chan struct{})
	dec := DecoderFunc(func(ctx context.Context, _ string, _ []byte, _ memory.Allocator) (any, int, registry.Destructor, error) {
		close(entered)
		<-ctx.Done()
		return nil, 0, nil, ctx.Err()
	})
	l := f.loader(dec, WithWorkers(1))
	require.NoError(t, l.Start(t.Context()))
	require.NoError(t, l.Submit("slow"))

	<-entered
	require.NoError(t, l.Stop())

	s, _ := f.trk.Get("slow")
	assert.Equal(t, tracker.Error, s)
}

func TestLoader_LoadAll(t *testing.T) {
	f := newFixture(t)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		f.src.Put(id, []byte(id))
	}
	l := f.loader(Raw(), WithWorkers(2))

	entries, err := l.LoadAll(t.Context(), ids)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID())
		require.NoError(t, f.reg.Release(e))
	}

	_, err = l.LoadAll(t.Context(), []string{"a", "nope"})
	require.ErrorIs(t, err, ErrLoadFailed)
	a, _ := f.reg.Acquire("a")
	assert.Equal(t, uint32(2), a.Count(), "partial results are released on failure")
	require.NoError(t, f.reg.Release(a))
}

func TestLoader_UnloadRequiresLoaded(t *testing.T) {
	f := newFixture(t)
	l := f.loader(Raw())

	require.NoError(t, f.trk.RegisterID("never"))
	require.ErrorIs(t, l.Unload("never"), ErrNotLoaded)
	require.ErrorIs(t, l.Unload("unknown"), tracker.ErrNotFound)
}

func TestLoader_IORate(t *testing.T) {
	f := newFixture(t)
	f.src.Put("big", make([]byte, 2048))
	l := f.loader(Raw(), WithIORate(1024))

	start := time.Now()
	e, err := l.Load(t.Context(), "big")
	require.NoError(t, err)
	require.NoError(t, f.reg.Release(e))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, uint64(2048), l.Stats().BytesRead)
}

func TestLoader_Metrics(t *testing.T) {
	f := newFixture(t)
	f.src.Put("m", []byte("metric"))
	mc := &BasicMetricsCollector{}
	l := f.loader(Raw(), WithMetricsCollector(mc))

	e, err := l.Load(t.Context(), "m")
	require.NoError(t, err)
	require.NoError(t, f.reg.Release(e))
	_, err = l.Load(t.Context(), "absent")
	require.Error(t, err)
	require.NoError(t, l.Unload("m"))

	s := mc.GetStats()
	assert.Equal(t, int64(2), s.LoadCount)
	assert.Equal(t, int64(1), s.LoadErrors)
	assert.Equal(t, int64(len("metric")), s.LoadBytes)
	assert.Equal(t, int64(1), s.UnloadCount)
	assert.Zero(t, s.UnloadErrors)
}
