package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fraugster/csv2parquet/internal/config"
	"github.com/fraugster/csv2parquet/internal/convert"
	"github.com/fraugster/csv2parquet/internal/csvsource"
	"github.com/fraugster/csv2parquet/internal/encoder"
	"github.com/fraugster/csv2parquet/internal/progress"
	"github.com/fraugster/csv2parquet/internal/tracing"
)

func init() {
	flags := convertCmd.Flags()
	flags.StringP("input", "i", "", "CSV file input")
	flags.StringP("output", "o", "", "output parquet file")
	flags.StringP("errors", "e", "errors.txt", "file receiving input records that couldn't be converted")
	flags.Bool("header", false, "use the first row as column names instead of Column1..ColumnN")
	flags.StringP("delimiter", "d", ",", `CSV field separator, one or more characters; \t means tab`)
	flags.Bool("lazy-quotes", false, "accept quotes appearing in unquoted fields")
	flags.String("comment", "", "skip lines starting with this character")
	flags.Bool("trim-leading-space", false, "ignore leading white space in fields")
	flags.String("input-encoding", "", "character encoding of the input, e.g. windows-1252; empty means UTF-8")
	flags.String("input-compression", string(csvsource.CompressionAuto), "input compression; allowed values: "+joinValues(csvsource.ValidCompressions()))
	flags.String("engine", string(encoder.EngineArrow), "parquet writer; allowed values: "+joinValues(encoder.ValidEngines()))
	flags.StringP("compression", "c", string(encoder.CodecSnappy), "compression algorithm; allowed values: "+joinValues(encoder.ValidCodecs()))
	flags.String("created-by", encoder.DefaultCreatedBy, "value to set for CreatedBy field of parquet file")
	flags.Bool("progress", false, "print encoding progress to stderr")
	flags.String("report", "", "write a run report to this file (.json for JSON, YAML otherwise)")
	flags.String("metrics-pushgateway", "", "push metrics to this Prometheus Pushgateway URL")
	flags.String("metrics-job", "csv2parquet", "Pushgateway job name")
	flags.String("metrics-textfile", "", "write metrics to this file for the node exporter textfile collector")
	flags.Bool("tracing", false, "print trace spans to stderr")
	flags.String("publish-url", "", "upload the output to s3://bucket/prefix or gs://bucket/prefix")
	flags.String("publish-region", "", "AWS region of the S3 bucket")
	flags.String("publish-endpoint", "", "custom object storage endpoint")
	flags.String("publish-credentials-file", "", "GCS service account credentials file")

	bindFlags(flags, map[string]string{
		"input":                    "input",
		"output":                   "output",
		"errors":                   "errors",
		"header":                   "header",
		"delimiter":                "delimiter",
		"lazy_quotes":              "lazy-quotes",
		"comment":                  "comment",
		"trim_leading_space":       "trim-leading-space",
		"input_encoding":           "input-encoding",
		"input_compression":        "input-compression",
		"engine":                   "engine",
		"compression":              "compression",
		"created_by":               "created-by",
		"progress":                 "progress",
		"report":                   "report",
		"metrics.pushgateway":      "metrics-pushgateway",
		"metrics.job":              "metrics-job",
		"metrics.textfile":         "metrics-textfile",
		"tracing.enabled":          "tracing",
		"publish.url":              "publish-url",
		"publish.region":           "publish-region",
		"publish.endpoint":         "publish-endpoint",
		"publish.credentials_file": "publish-credentials-file",
	})

	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a delimited text file into a Parquet file",
	Example: `  csv2parquet convert -i people.csv -o people.parquet --header
  csv2parquet convert -i export.tsv.gz -o export.parquet -d '\t' -c gzip`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := runConvert(cmd.Context(), current, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), current, sum)
		return nil
	},
}

func runConvert(ctx context.Context, cfg *config.Config, stderr io.Writer) (*convert.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return nil, err
	}

	tcfg := cfg.Tracing
	tcfg.Output = stderr
	tcfg.Version = version
	tracer, shutdown, err := tracing.Setup(ctx, tcfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("Flushing trace spans failed", zap.Error(err))
		}
	}()

	opts := []convert.Option{
		convert.WithLogger(logger),
		convert.WithTracer(tracer),
	}

	if cfg.Progress {
		bar := progress.NewAsync(func(percent int) {
			_, _ = fmt.Fprintf(stderr, "\rEncoding columns: %3d%%", percent)
		})
		defer func() {
			bar.Close()
			_, _ = fmt.Fprintln(stderr)
		}()
		opts = append(opts, convert.WithProgress(bar))
	}

	return convert.Run(ctx, pipeline, opts...)
}

func printSummary(w io.Writer, cfg *config.Config, sum *convert.Summary) {
	_, _ = fmt.Fprintf(w, "Wrote %d rows with %d columns to %s (%s)\n",
		sum.Rows, len(sum.Schema), cfg.Output, humanize.Bytes(uint64(sum.OutputBytes)))
	if sum.Quarantined > 0 {
		_, _ = fmt.Fprintf(w, "Wrote %d unusable records to %s\n", sum.Quarantined, cfg.Errors)
	}
	for _, url := range sum.Published {
		_, _ = fmt.Fprintf(w, "Published %s\n", url)
	}
}
