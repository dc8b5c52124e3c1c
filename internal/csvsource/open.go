package csvsource

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/fraugster/csv2parquet/internal/failure"
)

// Compression of the input file.
type Compression string

const (
	CompressionAuto   Compression = "auto"
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
)

var extensions = map[string]Compression{
	".gz":     CompressionGzip,
	".gzip":   CompressionGzip,
	".zst":    CompressionZstd,
	".zstd":   CompressionZstd,
	".lz4":    CompressionLZ4,
	".sz":     CompressionSnappy,
	".snappy": CompressionSnappy,
}

var validCompressions = map[Compression]bool{
	CompressionAuto:   true,
	CompressionNone:   true,
	CompressionGzip:   true,
	CompressionZstd:   true,
	CompressionLZ4:    true,
	CompressionSnappy: true,
}

// ParseCompression validates a compression name. The empty string means auto.
func ParseCompression(s string) (Compression, error) {
	if s == "" {
		return CompressionAuto, nil
	}
	c := Compression(strings.ToLower(s))
	if !validCompressions[c] {
		return "", fmt.Errorf("unsupported input compression %q; allowed values: %s", s, strings.Join(ValidCompressions(), ", "))
	}
	return c, nil
}

// ValidCompressions lists the accepted compression names.
func ValidCompressions() []string {
	l := make([]string, 0, len(validCompressions))
	for k := range validCompressions {
		l = append(l, string(k))
	}
	sort.Strings(l)
	return l
}

// DetectCompression picks the compression from the file extension.
func DetectCompression(path string) Compression {
	if c, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return CompressionNone
}

// ValidateEncoding checks that name is a known character encoding.
func ValidateEncoding(name string) error {
	if isUTF8(name) {
		return nil
	}
	if _, err := htmlindex.Get(name); err != nil {
		return fmt.Errorf("unknown input encoding %q: %w", name, err)
	}
	return nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var first error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens the file at path and returns UTF-8 text, decompressed and
// transcoded as requested. Closing the returned reader closes the file.
func Open(path string, compression Compression, encoding string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(err, failure.IO, "opening input")
	}

	rc, err := Wrap(f, path, compression, encoding)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return rc, nil
}

// Wrap applies decompression and transcoding to r. name is only used to
// detect the compression when it is CompressionAuto. On error r is left
// open and everything created on top of it is released.
func Wrap(r io.ReadCloser, name string, compression Compression, encoding string) (io.ReadCloser, error) {
	out := &readCloser{Reader: r}

	if compression == "" || compression == CompressionAuto {
		compression = DetectCompression(name)
	}

	switch compression {
	case CompressionNone:
	case CompressionGzip:
		zr, err := gzip.NewReader(out.Reader)
		if err != nil {
			return nil, failure.Wrap(err, failure.IO, "opening gzip stream")
		}
		out.Reader = zr
		out.closers = append(out.closers, zr.Close)
	case CompressionZstd:
		zr, err := zstd.NewReader(out.Reader)
		if err != nil {
			return nil, failure.Wrap(err, failure.IO, "opening zstd stream")
		}
		out.Reader = zr
		out.closers = append(out.closers, func() error {
			zr.Close()
			return nil
		})
	case CompressionLZ4:
		out.Reader = lz4.NewReader(out.Reader)
	case CompressionSnappy:
		out.Reader = snappy.NewReader(out.Reader)
	default:
		return nil, failure.New(failure.Config, "unsupported input compression %q", compression)
	}

	if !isUTF8(encoding) {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			_ = out.Close()
			return nil, failure.Wrap(err, failure.Config, "unknown input encoding %q", encoding)
		}
		out.Reader = enc.NewDecoder().Reader(out.Reader)
	}

	out.closers = append([]func() error{r.Close}, out.closers...)
	return out, nil
}
