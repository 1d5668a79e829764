package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

const (
	DefaultBrotliQuality = brotli.DefaultCompression

	// DefaultMaxDecoded matches the default gonet frame limit.
	DefaultMaxDecoded = 4 << 20
)

var ErrDecodedTooLarge = errors.New("codec: decompressed payload too large")

// Brotli compresses the output of an inner codec. Decode refuses payloads
// that decompress to more than MaxDecoded bytes; zero means DefaultMaxDecoded.
type Brotli struct {
	Inner      Codec
	Quality    int
	MaxDecoded int
}

func NewBrotli(inner Codec, quality int) *Brotli {
	return &Brotli{Inner: inner, Quality: quality}
}

func (b *Brotli) Name() string {
	return "brotli+" + b.Inner.Name()
}

func (b *Brotli) Encode(v any) ([]byte, error) {
	raw, err := b.Inner.Encode(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.Quality)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Brotli) Decode(data []byte, v any) error {
	limit := b.MaxDecoded
	if limit <= 0 {
		limit = DefaultMaxDecoded
	}

	r := io.LimitReader(brotli.NewReader(bytes.NewReader(data)), int64(limit)+1)
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("brotli decompress: %w", err)
	}
	if len(raw) > limit {
		return fmt.Errorf("%w: limit %d", ErrDecodedTooLarge, limit)
	}
	return b.Inner.Decode(raw, v)
}
