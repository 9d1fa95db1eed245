package loader

import (
	"context"

	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/registry"
)

// Decoder turns raw asset bytes into a payload. raw is only valid for the
// duration of the call. Payload memory should come from alloc so it is
// attributed to the Assets category; the returned destructor releases it.
type Decoder interface {
	Decode(ctx context.Context, id string, raw []byte, alloc memory.Allocator) (payload any, size int, dtor registry.Destructor, err error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, id string, raw []byte, alloc memory.Allocator) (any, int, registry.Destructor, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, id string, raw []byte, alloc memory.Allocator) (any, int, registry.Destructor, error) {
	return f(ctx, id, raw, alloc)
}

// Raw returns a decoder whose payload is a copy of the asset bytes held in
// allocator memory.
func Raw() Decoder {
	return DecoderFunc(func(_ context.Context, _ string, raw []byte, alloc memory.Allocator) (any, int, registry.Destructor, error) {
		if len(raw) == 0 {
			return []byte{}, 0, nil, nil
		}
		buf, err := alloc.Allocate(len(raw), 0)
		if err != nil {
			return nil, 0, nil, err
		}
		copy(buf, raw)
		return buf, len(buf), registry.DestructorFunc(func(any) { alloc.Release(buf) }), nil
	})
}
