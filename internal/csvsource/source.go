// Package csvsource reads delimited text into rows of fields.
//
// Parsing is delegated to encoding/csv. The source adds two things on top:
// the first successfully parsed row fixes the row width for the rest of the
// input, and any record that fails to parse or has a different width is
// handed to a Sink as raw text instead of being returned as an error.
package csvsource

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fraugster/csv2parquet/internal/failure"
)

// Sink receives the raw text of records that could not be used.
type Sink interface {
	Append(raw string)
}

// Options configure the underlying csv.Reader.
type Options struct {
	// Delimiter separates fields. It may be longer than one character.
	// Empty means ",".
	Delimiter string
	// Comment starts a line that is skipped. Zero disables comments.
	Comment rune
	// LazyQuotes accepts quotes appearing in unquoted fields.
	LazyQuotes bool
	// TrimLeadingSpace ignores leading white space in a field.
	TrimLeadingSpace bool
}

// Stats counts what the source has seen so far.
type Stats struct {
	Rows        int
	Malformed   int
	Ragged      int
	Quarantined int
}

// Source yields rows of equal width. It is not safe for concurrent use and
// can't be restarted.
type Source struct {
	cr      *csv.Reader
	rec     *recorder
	delim   *delimReader
	sink    Sink
	comment rune
	offset  int64
	width   int
	stats   Stats
}

// New creates a source reading r. Rejected records are appended to sink.
func New(r io.Reader, opts Options, sink Sink) *Source {
	s := &Source{
		sink:    sink,
		comment: opts.Comment,
	}

	r = skipBOM(r)
	comma := ','
	switch utf8.RuneCountInString(opts.Delimiter) {
	case 0:
	case 1:
		comma, _ = utf8.DecodeRuneInString(opts.Delimiter)
	default:
		s.delim = newDelimReader(r, opts.Delimiter, opts.Comment, opts.TrimLeadingSpace)
		r = s.delim
		comma = Placeholder
	}
	s.rec = &recorder{r: r}

	cr := csv.NewReader(s.rec)
	cr.Comma = comma
	cr.Comment = opts.Comment
	cr.LazyQuotes = opts.LazyQuotes
	cr.TrimLeadingSpace = opts.TrimLeadingSpace
	// Width is enforced here so that a malformed first record can't fix it.
	cr.FieldsPerRecord = -1

	s.cr = cr
	return s
}

// Next returns the next usable row, or io.EOF once the input is exhausted.
// Any other error is an unrecoverable read error.
func (s *Source) Next() ([]string, error) {
	for {
		row, err := s.cr.Read()
		end := s.cr.InputOffset()
		raw := s.rec.advance(end)
		if s.delim != nil {
			raw = s.delim.restore(raw, s.offset)
		}
		s.offset = end

		if err == io.EOF {
			return nil, io.EOF
		}

		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, failure.Wrap(err, failure.IO, "reading input")
			}
			s.stats.Malformed++
			s.quarantine(raw)
			continue
		}

		if s.width == 0 {
			s.width = len(row)
		} else if len(row) != s.width {
			s.stats.Ragged++
			s.quarantine(raw)
			continue
		}

		s.stats.Rows++
		return row, nil
	}
}

// Width returns the number of fields per row, or 0 before the first row.
func (s *Source) Width() int {
	return s.width
}

// Stats returns the counters accumulated so far.
func (s *Source) Stats() Stats {
	return s.stats
}

func (s *Source) quarantine(raw []byte) {
	s.stats.Quarantined++
	if s.sink != nil {
		s.sink.Append(trimRecord(string(raw), s.comment))
	}
}

// trimRecord removes the blank and comment lines encoding/csv skipped
// before the record, and the record's line terminator.
func trimRecord(raw string, comment rune) string {
	for {
		switch {
		case strings.HasPrefix(raw, "\n"):
			raw = raw[1:]
		case strings.HasPrefix(raw, "\r\n"):
			raw = raw[2:]
		case comment != 0 && strings.HasPrefix(raw, string(comment)):
			i := strings.IndexByte(raw, '\n')
			if i < 0 {
				return ""
			}
			raw = raw[i+1:]
		default:
			return strings.TrimRight(raw, "\r\n")
		}
	}
}
