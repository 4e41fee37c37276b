// Package fts builds the lightweight full-text index uploaded next to a
// merged file. The index maps lowercase tokens to row ordinals, letting
// the query path skip files that cannot contain a term.
package fts

import (
	"bytes"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses serialized index blocks.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
}

// ParseCodec resolves a codec by name. Supported: none, snappy, lz4, zstd.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return noneCodec{}, nil
	case "snappy":
		return snappyCodec{}, nil
	case "lz4":
		return lz4Codec{}, nil
	case "zstd":
		return newZstdCodec()
	default:
		return nil, fmt.Errorf("fts: unknown index codec %q", name)
	}
}

type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress(src []byte) ([]byte, error) { return src, nil }

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("fts: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("fts: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

type zstdCodec struct {
	enc *zstd.Encoder
}

func newZstdCodec() (Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("fts: init zstd: %w", err)
	}
	return zstdCodec{enc: enc}, nil
}

func (zstdCodec) Name() string { return "zstd" }

func (c zstdCodec) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}
