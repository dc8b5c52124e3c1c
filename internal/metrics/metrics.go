// Package metrics records conversion counters in a private Prometheus
// registry. A command line run is too short lived to be scraped, so the
// registry is flushed at the end of the run, either to a Pushgateway or to
// a textfile for the node exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const namespace = "csv2parquet"

// Quarantine reasons.
const (
	ReasonParse = "parse"
	ReasonWidth = "width"
)

// Config selects where Flush sends the metrics. Both targets are optional.
type Config struct {
	Pushgateway string `mapstructure:"pushgateway" yaml:"pushgateway" json:"pushgateway"`
	Job         string `mapstructure:"job" yaml:"job" json:"job"`
	Textfile    string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}

// Enabled reports whether any target is configured.
func (c Config) Enabled() bool {
	return c.Pushgateway != "" || c.Textfile != ""
}

// Collector holds the metrics of one conversion run.
type Collector struct {
	registry *prometheus.Registry

	rowsRead        prometheus.Counter
	rowsQuarantined *prometheus.CounterVec
	columns         prometheus.Gauge
	outputBytes     prometheus.Gauge
	stageDuration   *prometheus.HistogramVec
	lastSuccess     prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows parsed from the input and buffered for encoding.",
		}),
		rowsQuarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_quarantined_total",
			Help:      "Input records written to the error file instead of the output.",
		}, []string{"reason"}),
		columns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "columns",
			Help:      "Number of columns in the output schema.",
		}),
		outputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_bytes",
			Help:      "Size of the written Parquet file.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful conversion.",
		}),
	}

	c.registry.MustRegister(
		c.rowsRead,
		c.rowsQuarantined,
		c.columns,
		c.outputBytes,
		c.stageDuration,
		c.lastSuccess,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) AddRowsRead(n int) {
	c.rowsRead.Add(float64(n))
}

func (c *Collector) AddQuarantined(reason string, n int) {
	c.rowsQuarantined.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) SetColumns(n int) {
	c.columns.Set(float64(n))
}

func (c *Collector) SetOutputBytes(n int64) {
	c.outputBytes.Set(float64(n))
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageTimer returns a function that records the time since StageTimer was
// called when invoked.
func (c *Collector) StageTimer(stage string) func() {
	start := time.Now()
	return func() {
		c.ObserveStage(stage, time.Since(start))
	}
}

func (c *Collector) MarkSuccess(t time.Time) {
	c.lastSuccess.Set(float64(t.Unix()))
}

// Flush sends the registry to the configured targets. Failures are logged
// and returned, the conversion result doesn't depend on them.
func (c *Collector) Flush(cfg Config, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	var firstErr error
	if cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Textfile, c.registry); err != nil {
			log.Warn("Writing metrics textfile failed", zap.String("path", cfg.Textfile), zap.Error(err))
			firstErr = err
		} else {
			log.Debug("Wrote metrics textfile", zap.String("path", cfg.Textfile))
		}
	}

	if cfg.Pushgateway != "" {
		job := cfg.Job
		if job == "" {
			job = namespace
		}
		if err := push.New(cfg.Pushgateway, job).Gatherer(c.registry).Push(); err != nil {
			log.Warn("Pushing metrics failed", zap.String("url", cfg.Pushgateway), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		} else {
			log.Debug("Pushed metrics", zap.String("url", cfg.Pushgateway), zap.String("job", job))
		}
	}

	return firstErr
}
