package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/services"
)

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Nama Alat\nstock: \"Jumlah (unit)\"\n"), 0o600))

	mapping, err := loadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Nama Alat", "stock": "Jumlah (unit)"}, mapping)

	mapping, err = loadMapping("")
	require.NoError(t, err)
	assert.Nil(t, mapping)

	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))
	_, err = loadMapping(path)
	assert.Error(t, err)
}

func TestReadSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.csv")
	require.NoError(t, os.WriteFile(path, []byte("Daftar Alat\nKode,Nama Alat,Stok\nTL-1,Hammer,2\n"), 0o600))

	table, err := readSheet(path, services.ImportTools)
	require.NoError(t, err)
	assert.Equal(t, 2, table.HeaderRow)
	assert.Len(t, table.Rows, 1)
}

func TestWritePreview(t *testing.T) {
	var buf bytes.Buffer
	err := writePreview(&buf, &services.ImportPreview{
		Kind:      services.ImportTools,
		HeaderRow: 1,
		Rows:      2,
		Mapping:   map[string]string{"stock": "Stok", "name": "Nama"},
		Duplicates: []services.ImportIssue{
			{Row: 2, Field: "name", Value: "Hammer", Reason: "name repeated in rows 2, 3"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "tools: header at row 1, 2 data row(s)")
	assert.Contains(t, out, "duplicates:")
	assert.Contains(t, out, "name repeated in rows 2, 3")
	assert.Contains(t, out, "not ready")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("name ")), bytes.Index(buf.Bytes(), []byte("stock ")))
}

func TestWriteOverdue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOverdue(&buf, nil))
	assert.Equal(t, "no overdue loans\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOverdue(&buf, []services.OverdueLoan{{
		LoanResponse: &models.LoanResponse{Code: "LN-20240101-ABCDEF", ToolName: "Hammer", BorrowerName: "budi", Quantity: 2, PlannedReturnDate: "2024-01-10"},
		DaysLate:     3,
		FineAccrued:  decimal.NewFromInt(15000),
	}}))
	assert.Contains(t, buf.String(), "LN-20240101-ABCDEF")
	assert.Contains(t, buf.String(), "15000.00")
}
