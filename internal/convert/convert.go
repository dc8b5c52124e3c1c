// Package convert runs a complete conversion: it reads the delimited
// input, derives the schema from the first row, buffers every row, and
// writes the columns into a single row group. Records that can't be used
// end up in the error file and never stop the run.
package convert

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

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
)

// Config describes one run.
type Config struct {
	Input  string
	Output string
	Errors string
	Header bool

	Source           csvsource.Options
	InputCompression csvsource.Compression
	InputEncoding    string

	Encoder encoder.Options

	// Report, if set, receives a YAML or JSON summary of the run.
	Report  string
	Metrics metrics.Config
	Publish publish.Config
}

// Summary is the outcome of a successful run.
type Summary struct {
	Schema      schema.Schema
	Rows        int
	Quarantined int
	Malformed   int
	Ragged      int
	OutputBytes int64
	Fingerprint string
	Started     time.Time
	Duration    time.Duration
	Published   []string
}

// Option customizes Run.
type Option func(*runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithProgress receives transposition progress.
func WithProgress(p progress.Reporter) Option {
	return func(r *runner) {
		if p != nil {
			r.progress = p
		}
	}
}

// WithMetrics records the run in c instead of a private collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *runner) {
		if c != nil {
			r.metrics = c
		}
	}
}

// WithTracer creates spans for the pipeline stages.
func WithTracer(t trace.Tracer) Option {
	return func(r *runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithPublisher uploads the artifacts with p instead of a publisher built
// from Config.Publish.
func WithPublisher(p *publish.Publisher) Option {
	return func(r *runner) {
		r.publisher = p
	}
}

type runner struct {
	cfg       Config
	log       *zap.Logger
	progress  progress.Reporter
	metrics   *metrics.Collector
	tracer    trace.Tracer
	publisher *publish.Publisher
}

// RemoveArtifacts deletes the files a previous run left behind. Missing
// files are not an error.
func RemoveArtifacts(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return failure.Wrap(err, failure.IO, "removing %s", p)
		}
	}
	return nil
}

// Run performs the conversion described by cfg.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Summary, error) {
	cfg.Encoder = cfg.Encoder.WithDefaults()
	r := &runner{
		cfg:      cfg,
		log:      zap.NewNop(),
		progress: progress.Nop,
		tracer:   noop.NewTracerProvider().Tracer("csv2parquet"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}

	ctx, span := r.tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("input", cfg.Input),
		attribute.String("output", cfg.Output),
	))
	defer span.End()

	sum, err := r.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if cfg.Metrics.Enabled() {
		_ = r.metrics.Flush(cfg.Metrics, r.log)
	}
	return sum, err
}

func (r *runner) run(ctx context.Context) (*Summary, error) {
	cfg := r.cfg
	sum := &Summary{Started: time.Now()}

	r.log.Debug("Removing previous artifacts", zap.String("output", cfg.Output), zap.String("errors", cfg.Errors))
	if err := RemoveArtifacts(cfg.Output, cfg.Errors); err != nil {
		return nil, err
	}

	sink := quarantine.Open(cfg.Errors, r.log)
	defer sink.Close()

	buf, s, stats, err := r.read(ctx, sink)
	if err != nil {
		return nil, err
	}
	sum.Schema = s
	sum.Rows = buf.Len()
	sum.Quarantined = stats.Quarantined
	sum.Malformed = stats.Malformed
	sum.Ragged = stats.Ragged

	if err := r.write(ctx, buf, s); err != nil {
		return nil, err
	}

	if err := sink.Close(); err != nil {
		r.log.Debug("Quarantine file closed with error", zap.Error(err))
	}

	fp, size, err := container.Fingerprint(cfg.Output)
	if err != nil {
		return nil, err
	}
	sum.Fingerprint = fp
	sum.OutputBytes = size
	r.metrics.SetOutputBytes(size)

	if err := r.publish(ctx, sum); err != nil {
		return nil, err
	}

	sum.Duration = time.Since(sum.Started)
	r.metrics.MarkSuccess(time.Now())

	if cfg.Report != "" {
		if err := report.Write(cfg.Report, sum.Report(cfg)); err != nil {
			return nil, err
		}
		r.log.Debug("Wrote report", zap.String("path", cfg.Report))
	}

	r.log.Info("Conversion finished",
		zap.String("output", cfg.Output),
		zap.Int("rows", sum.Rows),
		zap.Int("columns", len(s)),
		zap.Int("quarantined", sum.Quarantined),
		zap.Int64("bytes", sum.OutputBytes),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// read fills the row buffer. The error sink receives every rejected record
// on the way.
func (r *runner) read(ctx context.Context, sink csvsource.Sink) (*table.Buffer, schema.Schema, csvsource.Stats, error) {
	cfg := r.cfg
	_, span := r.tracer.Start(ctx, "read")
	defer span.End()
	defer r.metrics.StageTimer("read")()

	r.log.Debug("Opening input", zap.String("path", cfg.Input))
	buf, s, stats, err := ReadTable(cfg, sink)
	if failure.Is(err, failure.EmptyInput) {
		r.recordStats(stats, 0)
	}
	if err != nil {
		return nil, nil, stats, err
	}

	r.log.Debug("Derived schema", zap.Bool("header", cfg.Header), zap.Strings("columns", s.Names()))
	if ce := r.log.Check(zap.DebugLevel, "Schema dump"); ce != nil {
		ce.Write(zap.String("schema", spew.Sdump(s)))
	}

	r.recordStats(stats, buf.Len())
	r.metrics.SetColumns(len(s))
	span.SetAttributes(
		attribute.Int("rows", buf.Len()),
		attribute.Int("quarantined", stats.Quarantined),
	)
	r.log.Debug("Finished reading input",
		zap.String("path", cfg.Input),
		zap.Int("rows", buf.Len()),
		zap.Int("malformed", stats.Malformed),
		zap.Int("ragged", stats.Ragged),
	)
	return buf, s, stats, nil
}

// ReadTable reads the input described by cfg into memory and derives the
// schema from the first usable row. Rejected records are appended to sink.
// The stats are valid even when an error is returned.
func ReadTable(cfg Config, sink csvsource.Sink) (*table.Buffer, schema.Schema, csvsource.Stats, error) {
	in, err := csvsource.Open(cfg.Input, cfg.InputCompression, cfg.InputEncoding)
	if err != nil {
		return nil, nil, csvsource.Stats{}, err
	}
	defer in.Close()

	src := csvsource.New(in, cfg.Source, sink)

	first, err := src.Next()
	if err == io.EOF {
		return nil, nil, src.Stats(), failure.New(failure.EmptyInput, "%s contains no parsable row", cfg.Input)
	}
	if err != nil {
		return nil, nil, src.Stats(), err
	}

	s, err := schema.Resolve(cfg.Header, first)
	if err != nil {
		return nil, nil, src.Stats(), err
	}

	buf := table.NewBuffer(len(s))
	if !cfg.Header {
		if err := buf.Append(first); err != nil {
			return nil, nil, src.Stats(), failure.Wrap(err, failure.IO, "buffering first row")
		}
	}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, src.Stats(), err
		}
		if err := buf.Append(row); err != nil {
			return nil, nil, src.Stats(), failure.Wrap(err, failure.IO, "buffering row")
		}
	}
	return buf, s, src.Stats(), nil
}

func (r *runner) recordStats(stats csvsource.Stats, buffered int) {
	r.metrics.AddRowsRead(buffered)
	r.metrics.AddQuarantined(metrics.ReasonParse, stats.Malformed)
	r.metrics.AddQuarantined(metrics.ReasonWidth, stats.Ragged)
}

// write creates the output file and streams the columns into it. A failed
// write leaves no output file behind.
func (r *runner) write(ctx context.Context, buf *table.Buffer, s schema.Schema) (err error) {
	cfg := r.cfg
	_, span := r.tracer.Start(ctx, "encode", trace.WithAttributes(
		attribute.String("engine", string(cfg.Encoder.Engine)),
		attribute.String("compression", string(cfg.Encoder.Codec)),
	))
	defer span.End()
	defer r.metrics.StageTimer("encode")()

	if dir := filepath.Dir(cfg.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure.Wrap(err, failure.IO, "creating output directory")
		}
	}

	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return failure.Wrap(err, failure.IO, "couldn't open output file")
	}
	defer func() {
		_ = f.Close()
		if err != nil {
			if rerr := os.Remove(cfg.Output); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				r.log.Warn("Removing incomplete output file failed", zap.String("path", cfg.Output), zap.Error(rerr))
			}
		}
	}()

	bw := bufio.NewWriter(f)
	enc, err := encoder.New(bw, s, cfg.Encoder)
	if err != nil {
		return err
	}

	err = table.EachColumn(buf, s, r.progress, func(idx int, col table.Column) error {
		return enc.WriteColumn(idx, col)
	})
	if err != nil {
		return err
	}
	buf.Reset()

	if err := enc.Close(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return failure.Wrap(err, failure.IO, "writing output file")
	}
	if err := f.Close(); err != nil {
		return failure.Wrap(err, failure.IO, "closing output file")
	}

	r.log.Debug("Finished generating output file", zap.String("path", cfg.Output))
	return nil
}

func (r *runner) publish(ctx context.Context, sum *Summary) error {
	p := r.publisher
	if p == nil {
		if !r.cfg.Publish.Enabled() {
			return nil
		}
		var err error
		p, err = publish.ForURL(ctx, r.cfg.Publish, r.log)
		if err != nil {
			return err
		}
		defer p.Close()
	}

	ctx, span := r.tracer.Start(ctx, "publish", trace.WithAttributes(
		attribute.String("target", p.Target().String()),
	))
	defer span.End()
	defer r.metrics.StageTimer("publish")()

	paths := []string{r.cfg.Output}
	if sum.Quarantined > 0 {
		paths = append(paths, r.cfg.Errors)
	}

	urls, err := p.Publish(ctx, paths...)
	if err != nil {
		return err
	}
	sum.Published = urls
	return nil
}

// Report converts the summary for report.Write.
func (s *Summary) Report(cfg Config) *report.Report {
	rep := report.New(s.Started)
	rep.Input = cfg.Input
	rep.Output = cfg.Output
	rep.Errors = cfg.Errors
	rep.Engine = string(cfg.Encoder.Engine)
	rep.Compression = string(cfg.Encoder.Codec)
	rep.Columns = s.Schema.Names()
	rep.RowsWritten = s.Rows
	rep.RowsQuarantined = s.Quarantined
	rep.MalformedRows = s.Malformed
	rep.RaggedRows = s.Ragged
	rep.OutputBytes = s.OutputBytes
	rep.Fingerprint = s.Fingerprint
	rep.Published = s.Published
	rep.Finish(s.Duration)
	return rep
}
