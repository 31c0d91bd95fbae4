package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/domain"
)

func TestExportService_ToolsRoundTripMapping(t *testing.T) {
	repos := newTestRepos(t)
	seedTool(t, repos, "TL-0001", "Hammer", 3)
	svc := NewExportService(repos)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportTools(context.Background(), FormatXLSX, &buf))

	table, err := spreadsheet.Read("tools.xlsx", &buf, ImportTools.Vocabulary())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	mapping := ProposeMapping(ImportTools, table.Headers)
	assert.Equal(t, "Name", mapping["name"])
	assert.Equal(t, "Code", mapping["code"])
	assert.Equal(t, "Stock Total", mapping["stock"])
	assert.Equal(t, "Hammer", table.Rows[0].Cell(table.Column("Name")))
}

func TestExportService_LoansCSV(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)
	f.pendingLoan(t, 1)
	_, err := f.reconcile(loan.ID, 2, 1, 0, "2024-01-15")
	require.NoError(t, err)

	svc := NewExportService(f.repos)
	var buf bytes.Buffer
	require.NoError(t, svc.ExportLoans(context.Background(), string(domain.LoanReturned), FormatCSV, &buf))

	raw, err := spreadsheet.ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, loanExportHeaders, raw[0])

	row := raw[1]
	assert.Equal(t, loan.Code, row[0])
	assert.Equal(t, "Hammer", row[2])
	assert.Equal(t, "returned", row[7])
	assert.Equal(t, []string{"2024-01-15", "2", "1", "0", "5", "25000.00"}, row[8:])

	assert.ErrorIs(t, svc.ExportLoans(context.Background(), "gone", FormatCSV, &buf), domain.ErrValidationFailed)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseExportFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "loans.xlsx", f.Filename("loans"))

	_, err = ParseExportFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}
