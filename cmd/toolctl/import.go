package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/services"
)

var (
	mappingFile string
	dryRun      bool
)

var importCmd = &cobra.Command{
	Use:   "import tools|users FILE",
	Short: "Import tools or users from a CSV or XLSX file",
	Long: `Reads a spreadsheet, detects its header row and maps columns to fields.
A batch is all or nothing: one duplicate or invalid row rejects every row.
Use --dry-run to see the proposed mapping and issues without writing.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	kind, err := services.ParseImportKind(args[0])
	if err != nil {
		return err
	}

	mapping, err := loadMapping(mappingFile)
	if err != nil {
		return err
	}

	table, err := readSheet(args[1], kind)
	if err != nil {
		return err
	}

	a, ctx, cancel, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	out := cmd.OutOrStdout()
	if dryRun {
		preview, err := a.Services.Imports.Preview(ctx, kind, table, mapping)
		if err != nil {
			return err
		}
		return writePreview(out, preview)
	}

	result, err := a.Services.Imports.Commit(ctx, kind, table, mapping)
	if err != nil {
		var rejected *services.ImportRejectedError
		if errors.As(err, &rejected) {
			_ = writeIssues(out, "duplicates", rejected.Duplicates)
			_ = writeIssues(out, "invalid", rejected.Invalid)
		}
		return err
	}

	fmt.Fprintf(out, "imported %d %s\n", result.Created, result.Kind)
	return writeIssues(out, "warnings", result.Warnings)
}

func readSheet(path string, kind services.ImportKind) (*spreadsheet.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return spreadsheet.Read(filepath.Base(path), f, kind.Vocabulary())
}

// loadMapping reads a YAML object of field: header. An empty path means
// the mapping is proposed from the headers.
func loadMapping(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mapping map[string]string
	if err := yaml.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return mapping, nil
}

func init() {
	importCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "YAML file of field: header overrides")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview only, write nothing")
}
