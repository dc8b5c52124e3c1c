// Package probe guesses what kind of values each column holds.
//
// The result is advisory. Output files always store text; the profile only
// helps a user decide how to cast columns downstream.
package probe

import (
	"strconv"

	"github.com/araddon/dateparse"

	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
)

// Kind is the guessed value type of a column.
type Kind string

const (
	KindEmpty     Kind = "empty"
	KindBool      Kind = "boolean"
	KindInt       Kind = "int64"
	KindFloat     Kind = "double"
	KindTimestamp Kind = "timestamp"
	KindText      Kind = "string"
)

const maxDistinct = 1000

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name string
	Kind Kind
	// Empty counts empty fields.
	Empty int
	// Distinct counts distinct non-empty values, up to maxDistinct.
	Distinct int
	// Capped is set when Distinct stopped counting.
	Capped bool
	// Example is the first non-empty value.
	Example string
}

// Profile looks at every buffered row.
func Profile(buf *table.Buffer, s schema.Schema) ([]ColumnProfile, error) {
	out := make([]ColumnProfile, 0, len(s))
	err := table.EachColumn(buf, s, nil, func(idx int, col table.Column) error {
		out = append(out, profileColumn(s[idx].Name, col))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func profileColumn(name string, col table.Column) ColumnProfile {
	p := ColumnProfile{Name: name, Kind: KindEmpty}
	seen := make(map[string]struct{})

	for _, v := range col {
		if v == "" {
			p.Empty++
			continue
		}
		if p.Example == "" {
			p.Example = v
		}
		if !p.Capped {
			seen[v] = struct{}{}
			if len(seen) >= maxDistinct {
				p.Capped = true
			}
		}
		p.Kind = merge(p.Kind, classify(v))
	}

	p.Distinct = len(seen)
	return p
}

func classify(v string) Kind {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return KindInt
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return KindFloat
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return KindBool
	}
	if _, err := dateparse.ParseStrict(v); err == nil {
		return KindTimestamp
	}
	return KindText
}

func merge(a, b Kind) Kind {
	switch {
	case a == KindEmpty:
		return b
	case a == b:
		return a
	case (a == KindInt && b == KindFloat) || (a == KindFloat && b == KindInt):
		return KindFloat
	default:
		return KindText
	}
}
