// Package encoder writes columns of text into a Parquet file with a single
// row group.
//
// Columns are handed over one at a time, in schema order. Every column is a
// required BYTE_ARRAY annotated as STRING, named after its schema column.
package encoder

import (
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
)

// DefaultCreatedBy is written into the file footer unless overridden.
const DefaultCreatedBy = "csv2parquet"

// Encoder receives columns and finalizes the file on Close.
type Encoder interface {
	// WriteColumn encodes column idx. Columns must arrive in schema order
	// and every column must hold the same number of values.
	WriteColumn(idx int, col table.Column) error
	// Close writes the footer. It fails if not every column was written.
	Close() error
}

// Engine names a Parquet writer implementation.
type Engine string

const (
	EngineArrow     Engine = "arrow"
	EngineFraugster Engine = "fraugster"
)

var validEngines = map[Engine]bool{
	EngineArrow:     true,
	EngineFraugster: true,
}

// Codec names a compression codec. The same codec is used for all columns.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecSnappy Codec = "snappy"
	CodecGzip   Codec = "gzip"
)

var validCodecs = map[Codec]bool{
	CodecNone:   true,
	CodecSnappy: true,
	CodecGzip:   true,
}

// Options configure New. The zero value selects the arrow engine with
// snappy compression.
type Options struct {
	Engine    Engine
	Codec     Codec
	CreatedBy string
}

// WithDefaults fills in the engine, codec and creator left empty.
func (o Options) WithDefaults() Options {
	if o.Engine == "" {
		o.Engine = EngineArrow
	}
	if o.Codec == "" {
		o.Codec = CodecSnappy
	}
	if o.CreatedBy == "" {
		o.CreatedBy = DefaultCreatedBy
	}
	return o
}

// New starts a file on w for the given schema.
func New(w io.Writer, s schema.Schema, opts Options) (Encoder, error) {
	opts = opts.WithDefaults()

	if len(s) == 0 {
		return nil, failure.New(failure.Encode, "schema has no columns")
	}
	if !validCodecs[opts.Codec] {
		return nil, failure.New(failure.Config, "unsupported compression codec %q", opts.Codec)
	}

	switch opts.Engine {
	case EngineArrow:
		return newArrowEncoder(w, s, opts)
	case EngineFraugster:
		return newFraugsterEncoder(w, s, opts)
	default:
		return nil, failure.New(failure.Config, "unsupported engine %q", opts.Engine)
	}
}

// ParseCodec looks up a codec name.
func ParseCodec(name string) (Codec, error) {
	c := Codec(strings.ToLower(name))
	if !validCodecs[c] {
		return "", errors.New("unsupported compression codec")
	}
	return c, nil
}

// ValidCodecs lists the accepted codec names.
func ValidCodecs() []string {
	l := make([]string, 0, len(validCodecs))
	for k := range validCodecs {
		l = append(l, string(k))
	}
	sort.Strings(l)
	return l
}

// ParseEngine looks up an engine name.
func ParseEngine(name string) (Engine, error) {
	e := Engine(strings.ToLower(name))
	if !validEngines[e] {
		return "", errors.New("unsupported engine")
	}
	return e, nil
}

// ValidEngines lists the accepted engine names.
func ValidEngines() []string {
	l := make([]string, 0, len(validEngines))
	for k := range validEngines {
		l = append(l, string(k))
	}
	sort.Strings(l)
	return l
}

// columnTracker holds the bookkeeping both engines share.
type columnTracker struct {
	schema  schema.Schema
	next    int
	rows    int
	closed  bool
	started bool
}

func (t *columnTracker) accept(idx int, col table.Column) error {
	if t.closed {
		return failure.New(failure.Encode, "encoder already closed")
	}
	if idx != t.next {
		return failure.New(failure.Encode, "column %d written out of order, expected column %d", idx, t.next)
	}
	if idx >= len(t.schema) {
		return failure.New(failure.Encode, "column %d out of range, schema has %d columns", idx, len(t.schema))
	}
	if t.started && len(col) != t.rows {
		return failure.New(failure.Encode, "column %q has %d values, expected %d", t.schema[idx].Name, len(col), t.rows)
	}
	t.started = true
	t.rows = len(col)
	t.next++
	return nil
}

func (t *columnTracker) finish() error {
	if t.closed {
		return failure.New(failure.Encode, "encoder already closed")
	}
	t.closed = true
	if t.next != len(t.schema) {
		return failure.New(failure.Encode, "only %d of %d columns written", t.next, len(t.schema))
	}
	return nil
}
