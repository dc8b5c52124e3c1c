package cmds

import (
	"github.com/spf13/cobra"
)

var recordCount *int64

func init() {
	recordCount = headCmd.PersistentFlags().Int64P("records", "n", 5, "The number of records to show")
	rootCmd.AddCommand(catCmd, headCmd, metaCmd)
}

var catCmd = &cobra.Command{
	Use:   "cat file-name.parquet",
	Short: "Print the parquet file content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return catFile(cmd.OutOrStdout(), args[0], -1)
	},
}

var headCmd = &cobra.Command{
	Use:   "head file-name.parquet",
	Short: "Prints the first n record of the Parquet file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return catFile(cmd.OutOrStdout(), args[0], *recordCount)
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta file-name.parquet",
	Short: "Print the metadata of the parquet file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return metaFile(cmd.OutOrStdout(), args[0])
	},
}
