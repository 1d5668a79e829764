// Package codec provides the pluggable serialization used for session messages and replies.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec turns typed values into bytes and back.
// Decode must fail, not guess, when data does not match the shape of v.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// ByName returns the codec registered under name.
// Supported names are "json" and "brotli+json".
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", JSON.Name():
		return JSON, nil
	case "brotli+" + JSON.Name():
		return NewBrotli(JSON, DefaultBrotliQuality), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
