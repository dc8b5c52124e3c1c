// Package container reads back Parquet files of text columns by position.
package container

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/zeebo/xxh3"

	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
)

const batchSize = 1024

// Contents is everything Read found in a file.
type Contents struct {
	Schema    schema.Schema
	Columns   []table.Column
	RowGroups int
	Rows      int64
	CreatedBy string
}

// ReadFile reads the file at path.
func ReadFile(path string) (*Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(err, failure.IO, "opening %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes every column of every row group. Values of a column are
// concatenated across row groups in file order.
func Read(r parquet.ReaderAtSeeker) (*Contents, error) {
	reader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, failure.Wrap(err, failure.Encode, "opening parquet file")
	}
	defer reader.Close()

	md := reader.MetaData()
	numCols := md.Schema.NumColumns()

	out := &Contents{
		Schema:    make(schema.Schema, numCols),
		Columns:   make([]table.Column, numCols),
		RowGroups: reader.NumRowGroups(),
		Rows:      reader.NumRows(),
		CreatedBy: md.GetCreatedBy(),
	}

	for i := 0; i < numCols; i++ {
		col := md.Schema.Column(i)
		if col.PhysicalType() != parquet.Types.ByteArray {
			return nil, failure.New(failure.Encode, "column %q has type %s, only byte arrays are supported", col.Name(), col.PhysicalType())
		}
		out.Schema[i] = schema.Column{Name: col.Name(), Type: schema.Text}
		out.Columns[i] = make(table.Column, 0, out.Rows)
	}

	for rg := 0; rg < out.RowGroups; rg++ {
		rgr := reader.RowGroup(rg)
		rows := rgr.NumRows()
		for i := 0; i < numCols; i++ {
			cr, err := rgr.Column(i)
			if err != nil {
				return nil, failure.Wrap(err, failure.Encode, "reading column %d of row group %d", i, rg)
			}
			vals, err := readColumn(cr, rows)
			if err != nil {
				return nil, failure.Wrap(err, failure.Encode, "reading column %q of row group %d", out.Schema[i].Name, rg)
			}
			out.Columns[i] = append(out.Columns[i], vals...)
		}
	}

	return out, nil
}

func readColumn(cr file.ColumnChunkReader, rows int64) ([]string, error) {
	br, ok := cr.(*file.ByteArrayColumnChunkReader)
	if !ok {
		return nil, fmt.Errorf("unexpected column reader %T", cr)
	}

	out := make([]string, 0, rows)
	buf := make([]parquet.ByteArray, batchSize)
	for int64(len(out)) < rows {
		want := rows - int64(len(out))
		if want > batchSize {
			want = batchSize
		}
		_, n, err := br.ReadBatch(want, buf[:want], nil, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("column ended after %d of %d values", len(out), rows)
		}
		for _, v := range buf[:n] {
			out = append(out, string(v))
		}
	}
	return out, nil
}

// Fingerprint returns the xxh3 hash of the file at path and its size.
func Fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, failure.Wrap(err, failure.IO, "opening %s", path)
	}
	defer f.Close()

	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, failure.Wrap(err, failure.IO, "hashing %s", path)
	}
	return fmt.Sprintf("%016x", h.Sum64()), n, nil
}
