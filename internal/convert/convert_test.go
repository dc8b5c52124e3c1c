package convert

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fraugster/csv2parquet/internal/container"
	"github.com/fraugster/csv2parquet/internal/csvsource"
	"github.com/fraugster/csv2parquet/internal/encoder"
	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/metrics"
	"github.com/fraugster/csv2parquet/internal/progress"
	"github.com/fraugster/csv2parquet/internal/publish"
	"github.com/fraugster/csv2parquet/internal/quarantine"
	"github.com/fraugster/csv2parquet/internal/report"
	"github.com/fraugster/csv2parquet/internal/schema"
	"github.com/fraugster/csv2parquet/internal/table"
	"github.com/fraugster/csv2parquet/internal/tracing"
)

func setup(t *testing.T, input string) Config {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o644))
	return Config{
		Input:  in,
		Output: filepath.Join(dir, "output.parquet"),
		Errors: filepath.Join(dir, "errors.txt"),
	}
}

func readErrors(t *testing.T, cfg Config) string {
	t.Helper()
	data, err := os.ReadFile(cfg.Errors)
	require.NoError(t, err)
	return string(data)
}

func TestRun(t *testing.T) {
	tests := map[string]struct {
		Input           string
		Header          bool
		Delimiter       string
		ExpectedSchema  []string
		ExpectedColumns []table.Column
		ExpectedErrors  string
	}{
		"error-isolation": {
			Input:           "a,b,c\n1,2\n4,5,6\n",
			ExpectedSchema:  []string{"Column1", "Column2", "Column3"},
			ExpectedColumns: []table.Column{{"a", "4"}, {"b", "5"}, {"c", "6"}},
			ExpectedErrors:  "1,2\n",
		},
		"semicolon-header": {
			Input:           "x;y\n1;2\n",
			Header:          true,
			Delimiter:       ";",
			ExpectedSchema:  []string{"x", "y"},
			ExpectedColumns: []table.Column{{"1"}, {"2"}},
		},
		"duplicate-header": {
			Input:           "x,x,y\n1,2,3\n",
			Header:          true,
			ExpectedSchema:  []string{"x", "x", "y"},
			ExpectedColumns: []table.Column{{"1"}, {"2"}, {"3"}},
		},
		"malformed-and-ragged": {
			Input:           "id,name\n1,\"bob\"x\n2,alice\n3\n4,carol\n",
			Header:          true,
			ExpectedSchema:  []string{"id", "name"},
			ExpectedColumns: []table.Column{{"2", "4"}, {"alice", "carol"}},
			ExpectedErrors:  "1,\"bob\"x\n3\n",
		},
		"header-only": {
			Input:           "a,b\n",
			Header:          true,
			ExpectedSchema:  []string{"a", "b"},
			ExpectedColumns: []table.Column{{}, {}},
		},
		"multi-char-delimiter": {
			Input:           "a||b\n1||2\n",
			Header:          true,
			Delimiter:       "||",
			ExpectedSchema:  []string{"a", "b"},
			ExpectedColumns: []table.Column{{"1"}, {"2"}},
		},
		"multi-char-delimiter-quarantine": {
			Input:           "a||b\n1||2||3\n4||5\n",
			Delimiter:       "||",
			ExpectedSchema:  []string{"Column1", "Column2"},
			ExpectedColumns: []table.Column{{"a", "4"}, {"b", "5"}},
			ExpectedErrors:  "1||2||3\n",
		},
		"tab-delimited": {
			Input:           "1\t2\n3\t4\n",
			Delimiter:       "\t",
			ExpectedSchema:  []string{"Column1", "Column2"},
			ExpectedColumns: []table.Column{{"1", "3"}, {"2", "4"}},
		},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			cfg := setup(t, tt.Input)
			cfg.Header = tt.Header
			cfg.Source.Delimiter = tt.Delimiter

			sum, err := Run(context.Background(), cfg, WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)

			got, err := container.ReadFile(cfg.Output)
			require.NoError(t, err)
			require.Equal(t, tt.ExpectedSchema, got.Schema.Names())
			require.Len(t, got.Columns, len(tt.ExpectedColumns))
			for i := range tt.ExpectedColumns {
				assert.Equal(t, []string(tt.ExpectedColumns[i]), []string(got.Columns[i]), "column %d", i)
			}
			if len(tt.ExpectedColumns[0]) > 0 {
				require.Equal(t, 1, got.RowGroups)
			}
			require.Equal(t, encoder.DefaultCreatedBy, got.CreatedBy)

			require.Equal(t, tt.ExpectedErrors, readErrors(t, cfg))

			require.Equal(t, tt.ExpectedSchema, sum.Schema.Names())
			require.Equal(t, len(tt.ExpectedColumns[0]), sum.Rows)
			require.Equal(t, bytes.Count([]byte(tt.ExpectedErrors), []byte("\n")), sum.Quarantined)
			require.NotEmpty(t, sum.Fingerprint)

			info, err := os.Stat(cfg.Output)
			require.NoError(t, err)
			require.Equal(t, info.Size(), sum.OutputBytes)
		})
	}
}

func TestRunEmptyInput(t *testing.T) {
	tests := map[string]struct {
		Input          string
		ExpectedErrors string
	}{
		"empty-file":     {Input: ""},
		"blank-lines":    {Input: "\n\n"},
		"only-malformed": {Input: "\"a\"b\n", ExpectedErrors: "\"a\"b\n"},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			cfg := setup(t, tt.Input)
			require.NoError(t, os.WriteFile(cfg.Output, []byte("stale"), 0o644))

			sum, err := Run(context.Background(), cfg)
			require.Error(t, err)
			require.Nil(t, sum)
			require.True(t, failure.Is(err, failure.EmptyInput))

			_, err = os.Stat(cfg.Output)
			require.True(t, os.IsNotExist(err))
			require.Equal(t, tt.ExpectedErrors, readErrors(t, cfg))
		})
	}
}

func TestRunTruncatesErrorFile(t *testing.T) {
	cfg := setup(t, "a,b\n1,2\n")
	require.NoError(t, os.WriteFile(cfg.Errors, []byte("old junk\n"), 0o644))

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "", readErrors(t, cfg))
}

func TestRunMissingInput(t *testing.T) {
	cfg := setup(t, "")
	cfg.Input = filepath.Join(t.TempDir(), "does-not-exist.csv")

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.IO))
}

func TestRunIdempotent(t *testing.T) {
	for _, engine := range []encoder.Engine{encoder.EngineArrow, encoder.EngineFraugster} {
		t.Run(string(engine), func(t *testing.T) {
			cfg := setup(t, "name,age\nViago,379\nbroken\nDeacon,183\n")
			cfg.Header = true
			cfg.Encoder.Engine = engine

			first, err := Run(context.Background(), cfg)
			require.NoError(t, err)
			data1, err := os.ReadFile(cfg.Output)
			require.NoError(t, err)
			errs1 := readErrors(t, cfg)

			second, err := Run(context.Background(), cfg)
			require.NoError(t, err)
			data2, err := os.ReadFile(cfg.Output)
			require.NoError(t, err)

			require.Equal(t, data1, data2)
			require.Equal(t, errs1, readErrors(t, cfg))
			require.Equal(t, first.Fingerprint, second.Fingerprint)
		})
	}
}

func TestRunFraugsterRejectsDuplicateNames(t *testing.T) {
	cfg := setup(t, "x,x\n1,2\n")
	cfg.Header = true
	cfg.Encoder.Engine = encoder.EngineFraugster

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.Config))
}

func TestRunEncoderFailureLeavesNoOutput(t *testing.T) {
	tests := map[string]struct {
		Input string
	}{
		"empty-column-name":     {Input: "a,,c\n1,2,3\n"},
		"duplicate-column-name": {Input: "a,a\n1,2\n"},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			cfg := setup(t, tt.Input)
			cfg.Header = true
			cfg.Encoder.Engine = encoder.EngineFraugster

			_, err := Run(context.Background(), cfg)
			require.Error(t, err)
			require.True(t, failure.Is(err, failure.Config), "%v", err)

			_, err = os.Stat(cfg.Output)
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestReadTable(t *testing.T) {
	cfg := setup(t, "id||name\n1||bob\n2\n3||\"x||y\"\n")
	cfg.Header = true
	cfg.Source.Delimiter = "||"

	sink := quarantine.Discard()
	buf, s, stats, err := ReadTable(cfg, sink)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, s.Names())
	require.Equal(t, 2, buf.Len())
	require.Equal(t, 1, stats.Ragged)
	require.Equal(t, 1, sink.Count())

	var cols []table.Column
	require.NoError(t, table.EachColumn(buf, s, progress.Nop, func(_ int, col table.Column) error {
		cols = append(cols, col)
		return nil
	}))
	require.Equal(t, []table.Column{{"1", "3"}, {"bob", "x||y"}}, cols)

	empty := setup(t, "\"a\"b\n")
	_, _, stats, err = ReadTable(empty, quarantine.Discard())
	require.True(t, failure.Is(err, failure.EmptyInput))
	require.Equal(t, 1, stats.Malformed)
}

func TestRunCompressedInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.csv.gz")
	f, err := os.Create(in)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = io.WriteString(zw, "a,b\n1,2\n3\n")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	cfg := Config{
		Input:            in,
		Output:           filepath.Join(dir, "out", "output.parquet"),
		Errors:           filepath.Join(dir, "out", "errors.txt"),
		Header:           true,
		InputCompression: csvsource.CompressionAuto,
		Encoder:          encoder.Options{Codec: encoder.CodecGzip},
	}

	sum, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Rows)
	require.Equal(t, 1, sum.Ragged)
	require.Equal(t, "3\n", readErrors(t, cfg))
}

func TestRunProgress(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("a,b,c\n")
	for i := 0; i < 500; i++ {
		b.WriteString("1,2,3\n")
	}
	cfg := setup(t, b.String())
	cfg.Header = true

	var reports []int
	_, err := Run(context.Background(), cfg, WithProgress(progress.Func(func(p int) {
		reports = append(reports, p)
	})))
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	require.Equal(t, 100, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		require.Greater(t, reports[i], reports[i-1])
	}
}

func TestRunMetrics(t *testing.T) {
	cfg := setup(t, "a,b,c\n1,2\n4,5,6\n\"x\"y,1,2\n")
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "run.prom")

	m := metrics.New()
	_, err := Run(context.Background(), cfg, WithMetrics(m))
	require.NoError(t, err)

	require.Equal(t, 2, testutil.CollectAndCount(m.Registry(), "csv2parquet_rows_quarantined_total"))
	expected := `
# HELP csv2parquet_rows_read_total Rows parsed from the input and buffered for encoding.
# TYPE csv2parquet_rows_read_total counter
csv2parquet_rows_read_total 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), bytes.NewBufferString(expected), "csv2parquet_rows_read_total"))

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	require.Contains(t, string(data), `csv2parquet_rows_quarantined_total{reason="width"} 1`)
	require.Contains(t, string(data), `csv2parquet_rows_quarantined_total{reason="parse"} 1`)
}

func TestRunReport(t *testing.T) {
	cfg := setup(t, "a,b,c\n1,2\n4,5,6\n")
	cfg.Report = filepath.Join(t.TempDir(), "report.json")

	sum, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	rep, err := report.Read(cfg.Report)
	require.NoError(t, err)
	require.Equal(t, []string{"Column1", "Column2", "Column3"}, rep.Columns)
	require.Equal(t, 2, rep.RowsWritten)
	require.Equal(t, 1, rep.RowsQuarantined)
	require.Equal(t, 1, rep.RaggedRows)
	require.Equal(t, "arrow", rep.Engine)
	require.Equal(t, "snappy", rep.Compression)
	require.Equal(t, sum.Fingerprint, rep.Fingerprint)
	require.Equal(t, sum.OutputBytes, rep.OutputBytes)
	require.NotEmpty(t, rep.RunID)
}

type memUploader struct {
	mu   sync.Mutex
	keys []string
}

func (m *memUploader) Upload(_ context.Context, bucket, key string, body io.Reader) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, bucket+"/"+key)
	return nil
}

func TestRunPublish(t *testing.T) {
	tests := map[string]struct {
		Input        string
		ExpectedURLs []string
	}{
		"clean": {
			Input:        "a,b\n1,2\n",
			ExpectedURLs: []string{"s3://bkt/exports/output.parquet"},
		},
		"with-errors": {
			Input:        "a,b\n1\n1,2\n",
			ExpectedURLs: []string{"s3://bkt/exports/output.parquet", "s3://bkt/exports/errors.txt"},
		},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			cfg := setup(t, tt.Input)
			up := &memUploader{}
			p := publish.New(publish.Target{Scheme: "s3", Bucket: "bkt", Prefix: "exports"}, up, zaptest.NewLogger(t))

			sum, err := Run(context.Background(), cfg, WithPublisher(p))
			require.NoError(t, err)
			require.Equal(t, tt.ExpectedURLs, sum.Published)
			require.Len(t, up.keys, len(tt.ExpectedURLs))
		})
	}
}

func TestRunTracing(t *testing.T) {
	out := &bytes.Buffer{}
	tracer, shutdown, err := tracing.Setup(context.Background(), tracing.Config{Enabled: true, Output: out})
	require.NoError(t, err)

	cfg := setup(t, "a,b\n1,2\n")
	_, err = Run(context.Background(), cfg, WithTracer(tracer))
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	for _, name := range []string{"convert", "read", "encode"} {
		require.Contains(t, out.String(), `"Name": "`+name+`"`)
	}
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "out.parquet")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	require.NoError(t, RemoveArtifacts(existing, filepath.Join(dir, "missing.txt"), ""))
	_, err := os.Stat(existing)
	require.True(t, os.IsNotExist(err))

	nonEmptyDir := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(nonEmptyDir, "child"), 0o755))
	err = RemoveArtifacts(nonEmptyDir)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.IO))
}

func TestSummaryReport(t *testing.T) {
	sum := &Summary{
		Schema:      schema.Synthesize(2),
		Rows:        3,
		Quarantined: 1,
		Malformed:   1,
		OutputBytes: 10,
	}
	rep := sum.Report(Config{Input: "in.csv", Encoder: encoder.Options{}.WithDefaults()})
	require.Equal(t, []string{"Column1", "Column2"}, rep.Columns)
	require.Equal(t, "in.csv", rep.Input)
	require.Equal(t, "arrow", rep.Engine)
	require.Equal(t, 1, rep.MalformedRows)
	require.Equal(t, "10 B", rep.OutputSize)
}
