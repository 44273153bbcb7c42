// Package filecache implements the File Cache (C), composing a Cache
// Database (A) of Metadata with an LRU eviction strategy (B) over a
// body-file directory store.
package filecache

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
)

// Codec transforms a cache body before it is written to disk and back
// after it is read. The zero value, noopCodec, stores bodies verbatim.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

type noopCodec struct{}

func (noopCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (noopCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// NoopCodec stores and retrieves bodies without transformation.
var NoopCodec Codec = noopCodec{}

type gzipCodec struct{ level int }

// GzipCodec compresses bodies with compress/gzip at the given level
// (gzip.DefaultCompression if 0).
func GzipCodec(level int) Codec {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return gzipCodec{level: level}
}

func (c gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

type brotliCodec struct{ level int }

// BrotliCodec compresses bodies with Brotli at the given level (0-11,
// default 6).
func BrotliCodec(level int) Codec {
	if level <= 0 {
		level = 6
	}
	return brotliCodec{level: level}
}

func (c brotliCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.level)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decode(data []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("brotli read: %w", err)
	}
	return out, nil
}

type snappyCodec struct{}

// SnappyCodec compresses bodies with Snappy, favoring speed over ratio.
var SnappyCodec Codec = snappyCodec{}

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}
