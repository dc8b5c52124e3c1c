package csvsource

import (
	"bufio"
	"bytes"
	"io"
)

// Placeholder stands in for a delimiter longer than one rune, since
// encoding/csv only splits on a single rune. It is a Unicode noncharacter,
// so it doesn't occur in interchanged text.
const Placeholder = '\uFDD0'

var placeholder = []byte(string(Placeholder))

type quoteState int

const (
	fieldStart quoteState = iota
	unquoted
	quoted
	quoteInQuoted
	commentLine
)

// delimReader replaces every delimiter outside quoted fields with
// Placeholder. The offsets of the replacements are kept so that raw record
// text can be restored for the sink.
type delimReader struct {
	r       *bufio.Reader
	delim   []byte
	comment []byte
	trim    bool

	state     quoteState
	lineStart bool
	out       []byte
	written   int64   // bytes of translated text produced so far
	subs      []int64 // translated offsets of placeholders not yet restored
	err       error
}

func newDelimReader(r io.Reader, delim string, comment rune, trim bool) *delimReader {
	d := &delimReader{
		r:         bufio.NewReader(r),
		delim:     []byte(delim),
		trim:      trim,
		lineStart: true,
	}
	if comment != 0 {
		d.comment = []byte(string(comment))
	}
	return d
}

func (d *delimReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(d.out) == 0 && d.err == nil {
		d.fill(len(p))
	}
	if len(d.out) == 0 {
		return 0, d.err
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *delimReader) fill(n int) {
	for len(d.out) < n {
		b, err := d.r.ReadByte()
		if err != nil {
			d.err = err
			return
		}

		if d.lineStart && d.comment != nil && d.startsWith(b, d.comment) {
			d.state = commentLine
		}
		d.lineStart = false

		switch d.state {
		case commentLine:
			if b == '\n' {
				d.state = fieldStart
				d.lineStart = true
			}
		case quoted:
			if b == '"' {
				d.state = quoteInQuoted
			}
		case quoteInQuoted:
			if b == '"' {
				d.state = quoted
				break
			}
			d.state = unquoted
			if d.delimiterAt(b) {
				continue
			}
			d.endOfField(b)
		default:
			if d.delimiterAt(b) {
				continue
			}
			switch {
			case b == '"' && d.state == fieldStart:
				d.state = quoted
			case d.trim && d.state == fieldStart && (b == ' ' || b == '\t'):
			default:
				d.endOfField(b)
			}
		}
		d.emit(b)
	}
}

// endOfField moves the state along for b outside a quoted field.
func (d *delimReader) endOfField(b byte) {
	if b == '\n' {
		d.state = fieldStart
		d.lineStart = true
		return
	}
	d.state = unquoted
}

// delimiterAt consumes a complete delimiter starting with b and emits the
// placeholder.
func (d *delimReader) delimiterAt(b byte) bool {
	if !d.startsWith(b, d.delim) {
		return false
	}
	_, _ = d.r.Discard(len(d.delim) - 1)
	d.subs = append(d.subs, d.written)
	d.out = append(d.out, placeholder...)
	d.written += int64(len(placeholder))
	d.state = fieldStart
	return true
}

// startsWith reports whether b followed by the buffered input begins with
// seq. Nothing is consumed.
func (d *delimReader) startsWith(b byte, seq []byte) bool {
	if b != seq[0] {
		return false
	}
	if len(seq) == 1 {
		return true
	}
	rest, _ := d.r.Peek(len(seq) - 1)
	return bytes.Equal(rest, seq[1:])
}

func (d *delimReader) emit(b byte) {
	d.out = append(d.out, b)
	d.written++
}

// restore turns translated text starting at offset start back into the
// input text.
func (d *delimReader) restore(raw []byte, start int64) []byte {
	end := start + int64(len(raw))
	for len(d.subs) > 0 && d.subs[0] < start {
		d.subs = d.subs[1:]
	}
	if len(d.subs) == 0 || d.subs[0] >= end {
		return raw
	}

	out := make([]byte, 0, len(raw))
	last := 0
	for len(d.subs) > 0 && d.subs[0] < end {
		at := int(d.subs[0] - start)
		if at+len(placeholder) > len(raw) {
			break
		}
		out = append(out, raw[last:at]...)
		out = append(out, d.delim...)
		last = at + len(placeholder)
		d.subs = d.subs[1:]
	}
	return append(out, raw[last:]...)
}
