package csvsource

import (
	"bufio"
	"bytes"
	"io"
)

const compactThreshold = 64 << 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// recorder keeps the bytes read from r until the consumer says they belong
// to a record it is done with. Offsets are absolute positions in the stream.
type recorder struct {
	r    io.Reader
	buf  []byte
	base int64 // stream offset of buf[0]
	pos  int   // index in buf of the first byte not yet handed out
}

func (rc *recorder) Read(p []byte) (int, error) {
	n, err := rc.r.Read(p)
	if n > 0 {
		rc.buf = append(rc.buf, p[:n]...)
	}
	return n, err
}

// advance returns the bytes between the previous call and the stream
// offset end. The returned slice is only valid until the next Read.
func (rc *recorder) advance(end int64) []byte {
	if rc.pos >= compactThreshold && rc.pos*2 >= len(rc.buf) {
		n := copy(rc.buf, rc.buf[rc.pos:])
		rc.buf = rc.buf[:n]
		rc.base += int64(rc.pos)
		rc.pos = 0
	}

	stop := int(end - rc.base)
	if stop > len(rc.buf) {
		stop = len(rc.buf)
	}
	if stop < rc.pos {
		stop = rc.pos
	}
	out := rc.buf[rc.pos:stop]
	rc.pos = stop
	return out
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
