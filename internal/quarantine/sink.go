// Package quarantine implements the side file that collects raw input
// records which could not be parsed.
//
// The sink is best effort. Failing to open or write it is logged and
// otherwise ignored, because its whole purpose is to keep the conversion
// going through bad data.
package quarantine

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Sink appends raw records, one per line, in the order they are seen.
type Sink struct {
	mu     sync.Mutex
	log    *zap.Logger
	path   string
	closer io.Closer
	w      *bufio.Writer
	count  int
	failed int
}

// Open truncates (or creates) the file at path. If it can't be opened the
// returned sink discards everything it is given.
func Open(path string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{log: log, path: path}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("Couldn't create quarantine directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Warn("Couldn't open quarantine file, malformed rows will only be counted", zap.String("path", path), zap.Error(err))
		return s
	}
	s.closer = f
	s.w = bufio.NewWriter(f)
	return s
}

// New wraps an arbitrary writer. Closing the sink closes w if it is an
// io.Closer.
func New(w io.Writer, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{log: log, w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Discard returns a sink that only counts.
func Discard() *Sink {
	return &Sink{log: zap.NewNop()}
}

// Append records one raw line. It never fails.
func (s *Sink) Append(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.w == nil {
		return
	}

	_, err := s.w.WriteString(raw)
	if err == nil {
		err = s.w.WriteByte('\n')
	}
	if err != nil {
		s.writeFailed(err)
	}
}

func (s *Sink) writeFailed(err error) {
	s.failed++
	logf := s.log.Debug
	if s.failed == 1 {
		logf = s.log.Warn
	}
	logf("Appending to quarantine file failed", zap.String("path", s.path), zap.Int("failed_writes", s.failed), zap.Error(err))
}

// Count returns the number of lines appended so far.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Failed returns the number of lines that could not be written.
func (s *Sink) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Path returns the file the sink writes to, if any.
func (s *Sink) Path() string {
	return s.path
}

// Close flushes buffered lines and releases the file. Errors are logged
// and returned for callers that care; the pipeline ignores them.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.w != nil {
		if ferr := s.w.Flush(); ferr != nil {
			s.log.Warn("Flushing quarantine file failed", zap.String("path", s.path), zap.Error(ferr))
			err = ferr
		}
		s.w = nil
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			s.log.Warn("Closing quarantine file failed", zap.String("path", s.path), zap.Error(cerr))
			err = cerr
		}
		s.closer = nil
	}
	return err
}
