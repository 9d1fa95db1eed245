package loader

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the frame format of a raw asset.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect sniffs the frame magic at the start of raw.
func Detect(raw []byte) Compression {
	switch {
	case bytes.HasPrefix(raw, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(raw, lz4Magic):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

var zstdDecoderPool sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// decompress returns raw unchanged when it is not a known frame.
func decompress(raw []byte) ([]byte, Compression, error) {
	c := Detect(raw)
	switch c {
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, c, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, c, fmt.Errorf("zstd: %w", err)
		}
		return out, c, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, c, fmt.Errorf("lz4: %w", err)
		}
		return out, c, nil
	default:
		return raw, c, nil
	}
}
