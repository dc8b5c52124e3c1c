package cmds

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fraugster/csv2parquet/internal/config"
	"github.com/fraugster/csv2parquet/internal/convert"
	"github.com/fraugster/csv2parquet/internal/probe"
	"github.com/fraugster/csv2parquet/internal/quarantine"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe file-name.csv",
	Short: "Guess the value type of every column of a delimited text file",
	Long: `probe reads the input with the same options as convert and prints a
profile of every column. Converted files always store text; the guessed
kinds only help with casting the columns later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *current
		cfg.Input = args[0]
		return probeFile(cmd.OutOrStdout(), &cfg)
	},
}

func probeFile(w io.Writer, cfg *config.Config) error {
	// Only the reading options matter here, so the full validation of
	// output paths is skipped.
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	// Unusable records are only counted.
	buf, s, stats, err := convert.ReadTable(pipeline, quarantine.Discard())
	if err != nil {
		return err
	}
	skipped := stats.Quarantined

	profiles, err := probe.Profile(buf, s)
	if err != nil {
		return err
	}
	logger.Debug("Profiled input", zap.String("path", cfg.Input), zap.Int("rows", buf.Len()), zap.Int("skipped", skipped))

	writer := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "COLUMN\tKIND\tEMPTY\tDISTINCT\tEXAMPLE")
	for _, p := range profiles {
		distinct := fmt.Sprint(p.Distinct)
		if p.Capped {
			distinct += "+"
		}
		_, _ = fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Kind, p.Empty, distinct, p.Example)
	}
	_, _ = fmt.Fprintf(writer, "\n%d rows, %d records skipped\n", buf.Len(), skipped)
	return writer.Flush()
}
