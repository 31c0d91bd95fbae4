package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"toolhub/internal/core/services"
)

var (
	exportFormat string
	exportStatus string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:       "export tools|loans",
	Short:     "Export the tool catalog or the loan ledger",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"tools", "loans"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := services.ParseExportFormat(exportFormat)
		if err != nil {
			return err
		}

		a, ctx, cancel, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		} else if format == services.FormatXLSX {
			return fmt.Errorf("xlsx output needs --output")
		}

		if args[0] == "tools" {
			return a.Services.Exports.ExportTools(ctx, format, w)
		}
		return a.Services.Exports.ExportLoans(ctx, exportStatus, format, w)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv or xlsx")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Only loans with this status")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}
