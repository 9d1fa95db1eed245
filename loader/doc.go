// Package loader loads assets asynchronously on top of the registry and the
// state tracker.
//
// Every load follows the same protocol: the identifier is registered with
// the tracker, loading rights are taken with TryAcquireLoading, and the
// resource ends in Loaded or Error. A thread that loses the race for loading
// rights never reads the asset; it waits for the winner instead.
//
// Raw bytes are read from a source.Source, decompressed when they carry a
// zstd or lz4 frame header, staged in the Temporary category and handed to a
// Decoder together with the Assets category allocator. The decoded payload
// is published in the registry; the loader keeps one resident reference per
// loaded asset until Unload.
//
//	l := loader.New(reg, trk, mem, source.NewLocal("assets"), loader.Raw(),
//	    loader.WithWorkers(4),
//	)
//	if err := l.Start(ctx); err != nil {
//	    return err
//	}
//	defer l.Stop()
//
//	e, err := l.Load(ctx, "textures/rock.ktx")
//	...
//	reg.Release(e)
package loader
