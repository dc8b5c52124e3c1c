package table

import (
	"fmt"

	"github.com/fraugster/csv2parquet/internal/progress"
	"github.com/fraugster/csv2parquet/internal/schema"
)

// Column holds one value per buffered row, in row order.
type Column []string

// EachColumn builds the columns of buf one after the other, in schema
// order, and hands each to fn as soon as it is complete. Column c is fully
// built before column c+1 is started. fn may retain the column.
//
// Progress is reported as copied*100/total whenever the integer percentage
// increases, so 100 is only reported after the last cell has been copied.
// An empty buffer reports 100 once.
func EachColumn(buf *Buffer, s schema.Schema, p progress.Reporter, fn func(idx int, col Column) error) error {
	if len(s) != buf.Width() {
		return fmt.Errorf("schema has %d columns but rows have %d fields", len(s), buf.Width())
	}
	if p == nil {
		p = progress.Nop
	}

	total := buf.Len() * len(s)
	copied := 0
	last := -1

	for c := range s {
		col := make(Column, buf.Len())
		for r := range col {
			col[r] = buf.rows[r][c]

			copied++
			if pct := copied * 100 / total; pct > last {
				last = pct
				p.Report(pct)
			}
		}
		if err := fn(c, col); err != nil {
			return err
		}
	}

	if last < 100 {
		p.Report(100)
	}
	return nil
}

// Transpose returns every column of buf at once.
func Transpose(buf *Buffer, s schema.Schema, p progress.Reporter) ([]Column, error) {
	cols := make([]Column, 0, len(s))
	err := EachColumn(buf, s, p, func(_ int, col Column) error {
		cols = append(cols, col)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}
