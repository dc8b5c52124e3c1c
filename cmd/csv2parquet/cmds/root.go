package cmds

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fraugster/csv2parquet/internal/config"
	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/logging"
)

var (
	v = viper.New()

	// current is loaded before any subcommand runs.
	current *config.Config
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "csv2parquet",
	Short: "csv2parquet converts delimited text files into Parquet files",
	Long: `csv2parquet reads a delimited text file, stores every column as text in a
single row group of a Parquet file, and writes records it can't use to a
separate error file.

Options are read from flags, CSV2PARQUET_* environment variables, a .env
file and an optional config file, in this order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Log)
		if err != nil {
			return failure.Wrap(err, failure.Config, "invalid log configuration")
		}
		current = cfg
		logger = log
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (YAML, JSON or TOML)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	bindFlags(flags, map[string]string{
		"config":     "config",
		"log.level":  "log-level",
		"log.format": "log-format",
	})
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	if log, err := logging.New(logging.Config{}); err == nil {
		logger = log
	}

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(context.Background())
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Error("Command failed", zap.String("kind", string(failure.KindOf(err))), zap.Error(err))
		return 1
	}
	return 0
}
