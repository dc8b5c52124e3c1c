// Package table holds parsed rows in memory and turns them into columns.
//
// The buffer is the boundary between row-at-a-time ingestion and
// column-at-a-time encoding: every row is retained until the buffer is
// transposed, so memory grows with the number of cells in the input.
package table

import "fmt"

// Buffer is an append-only sequence of rows of identical width.
type Buffer struct {
	width int
	rows  [][]string
}

// NewBuffer creates a buffer for rows with width fields.
func NewBuffer(width int) *Buffer {
	return &Buffer{width: width}
}

// Append adds a row. Rows of a different width are rejected.
func (b *Buffer) Append(row []string) error {
	if len(row) != b.width {
		return fmt.Errorf("row has %d fields instead of %d", len(row), b.width)
	}
	b.rows = append(b.rows, row)
	return nil
}

// Width returns the number of fields per row.
func (b *Buffer) Width() int {
	return b.width
}

// Len returns the number of rows.
func (b *Buffer) Len() int {
	return len(b.rows)
}

// Row returns the i-th row. The returned slice must not be modified.
func (b *Buffer) Row(i int) []string {
	return b.rows[i]
}

// Cells returns Len() * Width().
func (b *Buffer) Cells() int {
	return len(b.rows) * b.width
}

// Reset drops all rows.
func (b *Buffer) Reset() {
	b.rows = nil
}
