package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fraugster/csv2parquet/internal/failure"
)

func TestParseURL(t *testing.T) {
	tests := map[string]struct {
		Input     string
		Expected  Target
		ExpectErr bool
	}{
		"s3-with-prefix": {
			Input:    "s3://my-bucket/exports/daily/",
			Expected: Target{Scheme: "s3", Bucket: "my-bucket", Prefix: "exports/daily"},
		},
		"gs-bucket-only": {
			Input:    "gs://data",
			Expected: Target{Scheme: "gs", Bucket: "data"},
		},
		"http": {
			Input:     "https://example.com/x",
			ExpectErr: true,
		},
		"no-bucket": {
			Input:     "s3:///prefix",
			ExpectErr: true,
		},
		"garbage": {
			Input:     "://",
			ExpectErr: true,
		},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			target, err := ParseURL(tt.Input)
			if tt.ExpectErr {
				require.Error(t, err)
				require.True(t, failure.Is(err, failure.Config))
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.Expected, target)
			}
		})
	}
}

func TestTargetKey(t *testing.T) {
	require.Equal(t, "exports/out.parquet", Target{Prefix: "exports"}.Key("/tmp/run/out.parquet"))
	require.Equal(t, "out.parquet", Target{}.Key("out.parquet"))
	require.Equal(t, "s3://b/p", Target{Scheme: "s3", Bucket: "b", Prefix: "p"}.String())
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string]string
	fail    string
}

func (m *memUploader) Upload(_ context.Context, bucket, key string, body io.Reader) error {
	if key == m.fail {
		return errors.New("access denied")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = string(data)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	out := writeFile(t, dir, "out.parquet", "PAR1")
	errs := writeFile(t, dir, "errors.txt", "1,2\n")

	up := &memUploader{objects: map[string]string{}}
	p := New(Target{Scheme: "s3", Bucket: "bkt", Prefix: "runs/1"}, up, zaptest.NewLogger(t))

	urls, err := p.Publish(context.Background(), out, "", errs)
	require.NoError(t, err)
	require.Equal(t, []string{"s3://bkt/runs/1/out.parquet", "s3://bkt/runs/1/errors.txt"}, urls)
	require.Equal(t, map[string]string{
		"bkt/runs/1/out.parquet": "PAR1",
		"bkt/runs/1/errors.txt":  "1,2\n",
	}, up.objects)
	require.NoError(t, p.Close())
}

func TestPublishFailure(t *testing.T) {
	dir := t.TempDir()
	out := writeFile(t, dir, "out.parquet", "PAR1")

	up := &memUploader{objects: map[string]string{}, fail: "out.parquet"}
	p := New(Target{Scheme: "gs", Bucket: "bkt"}, up, nil)

	_, err := p.Publish(context.Background(), out)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.IO))

	_, err = p.Publish(context.Background(), filepath.Join(dir, "missing"))
	require.True(t, failure.Is(err, failure.IO))
}

func TestPublishRejectsSameKey(t *testing.T) {
	out := writeFile(t, t.TempDir(), "run.csv", "PAR1")
	errs := writeFile(t, t.TempDir(), "run.csv", "1,2\n")

	up := &memUploader{objects: map[string]string{}}
	p := New(Target{Scheme: "s3", Bucket: "bkt", Prefix: "exports"}, up, zaptest.NewLogger(t))

	_, err := p.Publish(context.Background(), out, errs)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.Config))
	require.Empty(t, up.objects)
}
