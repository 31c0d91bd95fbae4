package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/domain"
)

// ExportFormat is a spreadsheet file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat defaults to csv
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: format must be csv or xlsx", domain.ErrValidationFailed)
}

// ContentType returns the MIME type of the format
func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns name with the format's extension
func (f ExportFormat) Filename(name string) string {
	return name + "." + string(f)
}

var (
	toolExportHeaders = []string{"Code", "Name", "Category", "Description", "Location", "Condition", "Stock Total", "Available", "Under Repair"}
	loanExportHeaders = []string{"Code", "Tool Code", "Tool", "Borrower", "Quantity", "Loan Date", "Planned Return", "Status", "Return Date", "Good", "Damaged", "Lost", "Late Days", "Fine"}
)

// ExportService writes the catalog and loan ledger as spreadsheets
type ExportService struct {
	repos *repositories.Registry
}

// NewExportService creates a new export service
func NewExportService(repos *repositories.Registry) *ExportService {
	return &ExportService{repos: repos}
}

// ExportTools writes every catalog tool. The column names round-trip
// through the tool import.
func (s *ExportService) ExportTools(ctx context.Context, format ExportFormat, w io.Writer) error {
	tools, _, err := s.repos.Tools.List(ctx, repositories.ToolFilter{}, 0, 0)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(tools))
	for _, t := range tools {
		category := ""
		if t.Category != nil {
			category = t.Category.Code
		}
		rows = append(rows, []string{
			t.Code,
			t.Name,
			category,
			t.Description,
			t.Location,
			t.Condition,
			strconv.Itoa(t.StockTotal),
			strconv.Itoa(t.StockAvailable),
			strconv.Itoa(t.StockUnderRepair),
		})
	}
	return write(format, w, "Tools", toolExportHeaders, rows)
}

// ExportLoans writes loans matching status (all when empty) with their
// return breakdown.
func (s *ExportService) ExportLoans(ctx context.Context, status string, format ExportFormat, w io.Writer) error {
	if status != "" && !domain.LoanStatus(status).Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidationFailed, status)
	}

	loans, _, err := s.repos.Loans.List(ctx, repositories.LoanFilter{Status: status}, 0, 0)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, loanRow(l))
	}
	return write(format, w, "Loans", loanExportHeaders, rows)
}

func loanRow(l *models.Loan) []string {
	var toolCode, toolName, borrower string
	if l.Tool != nil {
		toolCode, toolName = l.Tool.Code, l.Tool.Name
	}
	if l.Borrower != nil {
		borrower = displayName(l.Borrower)
	}

	row := []string{
		l.Code,
		toolCode,
		toolName,
		borrower,
		strconv.Itoa(l.Quantity),
		l.LoanDate.Format(models.DateLayout),
		l.PlannedReturnDate.Format(models.DateLayout),
		l.Status,
		"", "", "", "", "", "",
	}
	if r := l.Return; r != nil {
		copy(row[8:], []string{
			r.ReturnDate.Format(models.DateLayout),
			strconv.Itoa(r.UnitsGood),
			strconv.Itoa(r.UnitsDamaged),
			strconv.Itoa(r.UnitsLost),
			strconv.Itoa(r.LateDays),
			r.Fine.StringFixed(2),
		})
	}
	return row
}

func write(format ExportFormat, w io.Writer, sheet string, headers []string, rows [][]string) error {
	if format == FormatXLSX {
		return spreadsheet.WriteXLSX(w, sheet, headers, rows)
	}
	return spreadsheet.WriteCSV(w, headers, rows)
}
