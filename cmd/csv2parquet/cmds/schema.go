package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(schemaCmd, rowCountCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema file-name.parquet",
	Short: "Print the parquet file schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fl, reader, err := openParquet(args[0])
		if err != nil {
			return err
		}
		defer fl.Close()

		_, err = fmt.Fprint(cmd.OutOrStdout(), reader.GetSchemaDefinition())
		return err
	},
}

var rowCountCmd = &cobra.Command{
	Use:   "rowcount file-name.parquet",
	Short: "Prints the count of rows in Parquet file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fl, reader, err := openParquet(args[0])
		if err != nil {
			return err
		}
		defer fl.Close()

		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Total RowCount:", reader.NumRows())
		return err
	},
}
