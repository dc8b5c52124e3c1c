package encoder

import (
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
)

var arrowCodecs = map[Codec]compress.Compression{
	CodecNone:   compress.Codecs.Uncompressed,
	CodecSnappy: compress.Codecs.Snappy,
	CodecGzip:   compress.Codecs.Gzip,
}

type arrowEncoder struct {
	columnTracker
	fw  *file.Writer
	rgw file.SerialRowGroupWriter
}

func newArrowEncoder(w io.Writer, s schema.Schema, opts Options) (*arrowEncoder, error) {
	root, err := arrowSchema(s)
	if err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(arrowCodecs[opts.Codec]),
		parquet.WithCreatedBy(opts.CreatedBy),
	)

	fw := file.NewParquetWriter(w, root, file.WithWriterProps(props))

	return &arrowEncoder{
		columnTracker: columnTracker{schema: s},
		fw:            fw,
		rgw:           fw.AppendRowGroup(),
	}, nil
}

func arrowSchema(s schema.Schema) (*pqschema.GroupNode, error) {
	fields := make(pqschema.FieldList, 0, len(s))
	for _, c := range s {
		node, err := pqschema.NewPrimitiveNodeLogical(c.Name, parquet.Repetitions.Required,
			pqschema.StringLogicalType{}, parquet.Types.ByteArray, -1, -1)
		if err != nil {
			return nil, failure.Wrap(err, failure.Encode, "creating column %q", c.Name)
		}
		fields = append(fields, node)
	}

	root, err := pqschema.NewGroupNode("schema", parquet.Repetitions.Required, fields, -1)
	if err != nil {
		return nil, failure.Wrap(err, failure.Encode, "creating schema")
	}
	return root, nil
}

func (e *arrowEncoder) WriteColumn(idx int, col table.Column) error {
	if err := e.accept(idx, col); err != nil {
		return err
	}

	cw, err := e.rgw.NextColumn()
	if err != nil {
		return failure.Wrap(err, failure.Encode, "starting column %q", e.schema[idx].Name)
	}

	bw, ok := cw.(*file.ByteArrayColumnChunkWriter)
	if !ok {
		_ = cw.Close()
		return failure.New(failure.Encode, "column %q: unexpected column writer %T", e.schema[idx].Name, cw)
	}

	values := make([]parquet.ByteArray, len(col))
	for i, v := range col {
		values[i] = parquet.ByteArray(v)
	}

	if _, err := bw.WriteBatch(values, nil, nil); err != nil {
		_ = bw.Close()
		return failure.Wrap(err, failure.Encode, "writing column %q", e.schema[idx].Name)
	}

	if err := bw.Close(); err != nil {
		return failure.Wrap(err, failure.Encode, "finishing column %q", e.schema[idx].Name)
	}
	return nil
}

func (e *arrowEncoder) Close() error {
	if err := e.finish(); err != nil {
		return err
	}
	if err := e.rgw.Close(); err != nil {
		return failure.Wrap(err, failure.Encode, "closing row group")
	}
	if err := e.fw.Close(); err != nil {
		return failure.Wrap(err, failure.Encode, "writing footer")
	}
	return nil
}
