package encoder

import (
	"io"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"

	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
)

var fraugsterCodecs = map[Codec]parquet.CompressionCodec{
	CodecNone:   parquet.CompressionCodec_UNCOMPRESSED,
	CodecSnappy: parquet.CompressionCodec_SNAPPY,
	CodecGzip:   parquet.CompressionCodec_GZIP,
}

// fraugsterEncoder keeps the columns until Close because the library
// takes data row by row. The row group size is left unbounded so that Close
// flushes exactly one row group.
type fraugsterEncoder struct {
	columnTracker
	fw   *goparquet.FileWriter
	cols []table.Column
}

func newFraugsterEncoder(w io.Writer, s schema.Schema, opts Options) (*fraugsterEncoder, error) {
	if s.HasDuplicateNames() {
		return nil, failure.New(failure.Config, "engine %s needs unique column names", EngineFraugster)
	}
	for i, c := range s {
		if c.Name == "" {
			return nil, failure.New(failure.Config, "engine %s needs a name for column %d", EngineFraugster, i+1)
		}
	}

	sd, err := deriveSchema(s)
	if err != nil {
		return nil, err
	}

	fw := goparquet.NewFileWriter(w,
		goparquet.WithCreator(opts.CreatedBy),
		goparquet.WithSchemaDefinition(sd),
		goparquet.WithCompressionCodec(fraugsterCodecs[opts.Codec]),
	)

	return &fraugsterEncoder{
		columnTracker: columnTracker{schema: s},
		fw:            fw,
		cols:          make([]table.Column, 0, len(s)),
	}, nil
}

func deriveSchema(s schema.Schema) (*parquetschema.SchemaDefinition, error) {
	sd := &parquetschema.SchemaDefinition{
		RootColumn: &parquetschema.ColumnDefinition{
			SchemaElement: &parquet.SchemaElement{
				Name: "msg",
			},
		},
	}

	for _, c := range s {
		sd.RootColumn.Children = append(sd.RootColumn.Children, createColumn(c.Name))
	}

	if err := sd.Validate(); err != nil {
		return nil, failure.Wrap(err, failure.Encode, "validation of generated schema failed")
	}
	return sd, nil
}

func createColumn(field string) *parquetschema.ColumnDefinition {
	col := &parquetschema.ColumnDefinition{
		SchemaElement: &parquet.SchemaElement{},
	}
	col.SchemaElement.RepetitionType = parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_REQUIRED)
	col.SchemaElement.Name = field
	col.SchemaElement.Type = parquet.TypePtr(parquet.Type_BYTE_ARRAY)
	col.SchemaElement.LogicalType = parquet.NewLogicalType()
	col.SchemaElement.LogicalType.STRING = &parquet.StringType{}
	col.SchemaElement.ConvertedType = parquet.ConvertedTypePtr(parquet.ConvertedType_UTF8)
	return col
}

func (e *fraugsterEncoder) WriteColumn(idx int, col table.Column) error {
	if err := e.accept(idx, col); err != nil {
		return err
	}
	e.cols = append(e.cols, col)
	return nil
}

func (e *fraugsterEncoder) Close() error {
	if err := e.finish(); err != nil {
		return err
	}
	if e.rows == 0 {
		return failure.New(failure.Encode, "engine %s can't write a file without rows", EngineFraugster)
	}

	for r := 0; r < e.rows; r++ {
		data := make(map[string]interface{}, len(e.schema))
		for c, col := range e.cols {
			data[e.schema[c].Name] = []byte(col[r])
		}
		if err := e.fw.AddData(data); err != nil {
			return failure.Wrap(err, failure.Encode, "in row %d, adding data failed", r+1)
		}
	}
	e.cols = nil

	if err := e.fw.Close(); err != nil {
		return failure.Wrap(err, failure.Encode, "closing parquet writer failed")
	}
	return nil
}
