package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/password"
)

func readSheet(t *testing.T, kind ImportKind, csv string) *spreadsheet.Table {
	t.Helper()
	table, err := spreadsheet.Read("sheet.csv", strings.NewReader(csv), kind.Vocabulary())
	require.NoError(t, err)
	return table
}

func toolCount(t *testing.T, svc *ImportService) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.repos.DB().Model(&models.Tool{}).Count(&n).Error)
	return n
}

func TestImportTools_CaseInsensitiveDuplicatesRejectBatch(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewImportService(repos, "changeme123", 0, nil)

	table := readSheet(t, ImportTools, "Nama,Stok\nHammer,2\nDrill,1\nhammer,4\n")

	_, err := svc.Commit(context.Background(), ImportTools, table, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var rejected *ImportRejectedError
	require.True(t, errors.As(err, &rejected))
	require.Len(t, rejected.Duplicates, 2)
	assert.Equal(t, 2, rejected.Duplicates[0].Row)
	assert.Equal(t, "Hammer", rejected.Duplicates[0].Value)
	assert.Equal(t, 4, rejected.Duplicates[1].Row)
	assert.Contains(t, rejected.Duplicates[1].Reason, "rows 2, 4")

	assert.Zero(t, toolCount(t, svc), "nothing from the batch is stored")
}

func TestImportTools_DuplicateOfStoredTool(t *testing.T) {
	repos := newTestRepos(t)
	seedTool(t, repos, "TL-0001", "Tang Kombinasi", 1)
	svc := NewImportService(repos, "changeme123", 0, nil)

	table := readSheet(t, ImportTools, "Nama Alat,Kode\nTANG KOMBINASI,\nObeng,TL-0001\nMeteran,\n")

	preview, err := svc.Preview(context.Background(), ImportTools, table, nil)
	require.NoError(t, err)
	assert.False(t, preview.Ready)
	require.Len(t, preview.Duplicates, 2)
	assert.Equal(t, 2, preview.Duplicates[0].Row)
	assert.Equal(t, "name", preview.Duplicates[0].Field)
	assert.Equal(t, 3, preview.Duplicates[1].Row)
	assert.Equal(t, "code", preview.Duplicates[1].Field)

	_, err = svc.Commit(context.Background(), ImportTools, table, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.EqualValues(t, 1, toolCount(t, svc))
}

func TestImportTools_CommitAppliesDefaults(t *testing.T) {
	repos := newTestRepos(t)
	require.NoError(t, repos.Categories.Create(context.Background(), &models.Category{Code: "HAND", Name: "Hand Tools", IsActive: true}))
	seedTool(t, repos, "TL-0007", "Palu", 1)
	svc := NewImportService(repos, "changeme123", 0, nil)

	table := readSheet(t, ImportTools,
		"Daftar Alat Lab\n"+
			"Nama Alat,Kategori,Kondisi,Jumlah,Lokasi\n"+
			"Obeng Plus,hand tools,,,Rak A\n"+
			"Multimeter,ELECTRIC,rusak,3,\n")

	preview, err := svc.Preview(context.Background(), ImportTools, table, nil)
	require.NoError(t, err)
	assert.True(t, preview.Ready)
	assert.Equal(t, 2, preview.HeaderRow)
	assert.Equal(t, "Nama Alat", preview.Mapping["name"])
	assert.Equal(t, "Jumlah", preview.Mapping["stock"])
	require.Len(t, preview.Sample, 2)
	assert.Equal(t, "Obeng Plus", preview.Sample[0]["name"])
	require.Len(t, preview.Warnings, 1)
	assert.Equal(t, 4, preview.Warnings[0].Row)

	result, err := svc.Commit(context.Background(), ImportTools, table, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, []string{"TL-0008", "TL-0009"}, result.Codes)

	obeng, err := repos.Tools.GetByCode(context.Background(), "TL-0008")
	require.NoError(t, err)
	assert.Equal(t, DefaultImportStock, obeng.StockTotal)
	assert.Equal(t, DefaultImportStock, obeng.StockAvailable)
	assert.Equal(t, string(domain.ConditionGood), obeng.Condition)
	assert.Equal(t, "Rak A", obeng.Location)
	require.NotNil(t, obeng.CategoryID)

	meter, err := repos.Tools.GetByCode(context.Background(), "TL-0009")
	require.NoError(t, err)
	assert.Equal(t, 3, meter.StockTotal)
	assert.Equal(t, string(domain.ConditionDamaged), meter.Condition)
	assert.Nil(t, meter.CategoryID)
}

func TestImportTools_InvalidRows(t *testing.T) {
	svc := NewImportService(newTestRepos(t), "changeme123", 0, nil)
	table := readSheet(t, ImportTools, "Nama,Stok\nObeng,banyak\n,2\nPalu,1\n")

	_, err := svc.Commit(context.Background(), ImportTools, table, nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	var rejected *ImportRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Empty(t, rejected.Duplicates)
	require.Len(t, rejected.Invalid, 2)
	assert.Equal(t, "stock", rejected.Invalid[0].Field)
	assert.Equal(t, 3, rejected.Invalid[1].Row)
	assert.Zero(t, toolCount(t, svc))
}

func TestImportService_MappingOverrides(t *testing.T) {
	svc := NewImportService(newTestRepos(t), "changeme123", 0, nil)
	table := readSheet(t, ImportTools, "Nama,Merk,Stok\nObeng,Tekiro,2\n")

	preview, err := svc.Preview(context.Background(), ImportTools, table, map[string]string{
		"name":  "Merk",
		"stock": "",
	})
	require.NoError(t, err)
	assert.Equal(t, "Merk", preview.Mapping["name"])
	assert.NotContains(t, preview.Mapping, "stock")

	_, err = svc.Preview(context.Background(), ImportTools, table, map[string]string{"name": "Brand"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.Preview(context.Background(), ImportTools, table, map[string]string{"price": "Stok"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.Preview(context.Background(), ImportTools, table, map[string]string{"name": ""})
	assert.ErrorIs(t, err, domain.ErrValidationFailed, "name is required")
}

func TestImportService_RowLimit(t *testing.T) {
	svc := NewImportService(newTestRepos(t), "changeme123", 2, nil)
	table := readSheet(t, ImportTools, "Nama\nA\nB\nC\n")

	_, err := svc.Preview(context.Background(), ImportTools, table, nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestImportUsers(t *testing.T) {
	repos := newTestRepos(t)
	seedUser(t, repos, "budi", domain.RoleBorrower)
	svc := NewImportService(repos, "changeme123", 0, nil)

	t.Run("duplicate emails", func(t *testing.T) {
		table := readSheet(t, ImportUsers, "Nama,Email\nAni,ani@example.com\nBudi,BUDI@example.com\nAni 2,Ani@Example.com\n")

		_, err := svc.Commit(context.Background(), ImportUsers, table, nil)
		var rejected *ImportRejectedError
		require.True(t, errors.As(err, &rejected))
		rows := []int{}
		for _, d := range rejected.Duplicates {
			rows = append(rows, d.Row)
		}
		assert.Equal(t, []int{2, 3, 4}, rows)
	})

	t.Run("commit", func(t *testing.T) {
		table := readSheet(t, ImportUsers, "Nama,Email,Username,Role\nCitra,citra@example.com,citra,\nDodi,dodi@example.com,,staff\n")

		result, err := svc.Commit(context.Background(), ImportUsers, table, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)

		citra, err := repos.Users.GetByUsername(context.Background(), "citra")
		require.NoError(t, err)
		assert.Equal(t, string(domain.RoleBorrower), citra.Role)
		assert.True(t, password.Verify("changeme123", citra.Password))

		dodi, err := repos.Users.GetByEmail(context.Background(), "dodi@example.com")
		require.NoError(t, err)
		assert.Equal(t, "dodi@example.com", dodi.Username)
		assert.Equal(t, string(domain.RoleStaff), dodi.Role)
	})

	t.Run("derived username collides", func(t *testing.T) {
		table := readSheet(t, ImportUsers, "Email,Username\neka@example.com,fajar@example.com\nfajar@example.com,\n")

		_, err := svc.Commit(context.Background(), ImportUsers, table, nil)
		var rejected *ImportRejectedError
		require.True(t, errors.As(err, &rejected))
		require.Len(t, rejected.Duplicates, 2)
		for i, row := range []int{2, 3} {
			assert.Equal(t, row, rejected.Duplicates[i].Row)
			assert.Equal(t, "username", rejected.Duplicates[i].Field)
			assert.Contains(t, rejected.Duplicates[i].Reason, "rows 2, 3")
		}
	})

	t.Run("invalid role and email", func(t *testing.T) {
		table := readSheet(t, ImportUsers, "Email,Role\nnot-an-email,\neko@example.com,owner\n")

		_, err := svc.Commit(context.Background(), ImportUsers, table, nil)
		assert.ErrorIs(t, err, domain.ErrValidationFailed)
	})
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "ani@example.com", usernameFromEmail("ani@example.com"))

	long := strings.Repeat("é", 60) + "@example.com"
	got := usernameFromEmail(long)
	assert.Equal(t, strings.Repeat("é", 50), got)
	assert.True(t, utf8.ValidString(got))
}

func TestParseImportKind(t *testing.T) {
	kind, err := ParseImportKind(" Tools ")
	require.NoError(t, err)
	assert.Equal(t, ImportTools, kind)

	_, err = ParseImportKind("loans")
	assert.ErrorIs(t, err, ErrUnknownImportKind)
}
