package quarantine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpenTruncatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	s := Open(path, zaptest.NewLogger(t))
	s.Append("1,2")
	s.Append(`"unterminated,x`)
	require.Equal(t, 2, s.Count())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1,2\n\"unterminated,x\n", string(data))
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "errors.txt")
	s := Open(path, nil)
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
}

func TestOpenFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	// A directory can't be opened for writing.
	s := Open(dir, zaptest.NewLogger(t))
	s.Append("bad")
	s.Append("worse")
	require.Equal(t, 2, s.Count())
	require.NoError(t, s.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailureIsSwallowed(t *testing.T) {
	s := New(failingWriter{}, zaptest.NewLogger(t))
	for i := 0; i < 10000; i++ {
		s.Append("some malformed line that will eventually overflow the buffer")
	}
	require.Equal(t, 10000, s.Count())
	require.Greater(t, s.Failed(), 0)
	require.Error(t, s.Close())
}

func TestDiscard(t *testing.T) {
	s := Discard()
	s.Append("x")
	require.Equal(t, 1, s.Count())
	require.NoError(t, s.Close())
}

func TestConcurrentAppendKeepsLinesIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.txt")
	s := Open(path, nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				s.Append("abc,def")
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1000*len("abc,def\n"), len(data))
}
