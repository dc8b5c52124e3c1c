// Package schema derives the column layout of a conversion from the first
// row of the input.
package schema

import (
	"strconv"
	"strings"

	"github.com/fraugster/csv2parquet/internal/failure"
)

// Type is the logical type of a column. Every column is text.
type Type string

// Text is the only column type; values are stored as UTF-8 strings.
const Text Type = "text"

// Column is one (name, type) entry of a schema.
type Column struct {
	Name string
	Type Type
}

// Schema is the ordered list of columns. Names are not required to be unique.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// HasDuplicateNames reports whether two columns share a name.
func (s Schema) HasDuplicateNames() bool {
	seen := make(map[string]struct{}, len(s))
	for _, c := range s {
		if _, ok := seen[c.Name]; ok {
			return true
		}
		seen[c.Name] = struct{}{}
	}
	return false
}

func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("message schema {\n")
	for _, c := range s {
		b.WriteString("  required binary ")
		b.WriteString(strconv.Quote(c.Name))
		b.WriteString(" (STRING);\n")
	}
	b.WriteString("}")
	return b.String()
}

// Resolve derives the schema from the first successfully parsed row. With
// headerPresent the row's values become the column names verbatim;
// otherwise names are synthesized from the row's width.
func Resolve(headerPresent bool, first []string) (Schema, error) {
	if len(first) == 0 {
		return nil, failure.New(failure.EmptyInput, "no row to derive the schema from")
	}

	if !headerPresent {
		return Synthesize(len(first)), nil
	}

	s := make(Schema, len(first))
	for i, name := range first {
		s[i] = Column{Name: name, Type: Text}
	}
	return s, nil
}

// Synthesize returns Column1..ColumnN.
func Synthesize(n int) Schema {
	s := make(Schema, n)
	for i := range s {
		s[i] = Column{Name: "Column" + strconv.Itoa(i+1), Type: Text}
	}
	return s
}
