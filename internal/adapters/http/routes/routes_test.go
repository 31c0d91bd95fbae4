package routes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"toolhub/internal/adapters/http/middleware"
	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/config"
	"toolhub/internal/core/domain"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/jwt"
	"toolhub/internal/pkg/password"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Data    jsoniter.RawMessage `json:"data"`
	Details jsoniter.RawMessage `json:"details"`
}

type testServer struct {
	app      *fiber.App
	repos    *repositories.Registry
	tokens   *jwt.Manager
	staff    *models.User
	borrower *models.User
	other    *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	password.Cost = bcrypt.MinCost

	db, err := config.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), logger.Discard)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	repos := repositories.NewRegistry(db)
	tokens := jwt.NewManager("access-secret", "refresh-secret", 15, 7)
	cfg := &config.Config{
		AppMode: "dev",
		JWT:     config.JWTConfig{AccessTokenMins: 15, RefreshTokenDays: 7},
		Cookie:  config.CookieConfig{SameSite: "lax"},
	}
	svc := services.NewContainer(repos, tokens, services.Options{
		FinePerDay:            domain.DefaultFinePerDay,
		ImportDefaultPassword: "changeme123",
		ImportMaxRows:         100,
		ReportTTL:             time.Minute,
	})

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	Setup(app, db, cfg, svc, nil)

	s := &testServer{app: app, repos: repos, tokens: tokens}
	s.staff = s.seedUser(t, "sari", domain.RoleStaff)
	s.borrower = s.seedUser(t, "budi", domain.RoleBorrower)
	s.other = s.seedUser(t, "rina", domain.RoleBorrower)
	return s
}

func (s *testServer) seedUser(t *testing.T, username string, role domain.Role) *models.User {
	t.Helper()
	hashed, err := password.Hash("secret1234")
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hashed,
		Role:     string(role),
		IsActive: true,
	}
	require.NoError(t, s.repos.Users.Create(context.Background(), user))
	return user
}

func (s *testServer) seedTool(t *testing.T, code, name string, total int) *models.Tool {
	t.Helper()
	tool := &models.Tool{
		Code:           code,
		Name:           name,
		Condition:      string(domain.ConditionGood),
		StockTotal:     total,
		StockAvailable: total,
		IsActive:       true,
	}
	require.NoError(t, s.repos.Tools.Create(context.Background(), tool))
	return tool
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := s.tokens.GenerateAccessToken(u.ID, u.Username, u.Role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, as *models.User) (*http.Response, envelope) {
	t.Helper()
	if as != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, as))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp, env
}

func (s *testServer) call(t *testing.T, method, path string, body any, as *models.User) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return s.do(t, req, as)
}

func loanID(t *testing.T, env envelope) uint {
	t.Helper()
	var data struct {
		Loan models.LoanResponse `json:"loan"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Loan.ID
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.call(t, fiber.MethodPost, "/api/v1/auth/login",
		fiber.Map{"username": "budi", "password": "secret1234"}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	var data services.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "budi", data.User.Username)
	assert.NotEmpty(t, data.AccessToken)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+data.AccessToken)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodPost, "/api/v1/auth/login",
		fiber.Map{"username": "budi", "password": "wrong-password"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.call(t, fiber.MethodGet, "/api/v1/tools", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/tools", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, _ = s.do(t, req, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodGet, "/api/v1/reports/summary", nil, s.borrower)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodGet, "/api/v1/users", nil, s.staff)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodGet, "/api/v1/categories", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "TL-0001", "Hammer", 3)
	planned := time.Now().AddDate(0, 0, 7).Format(models.DateLayout)

	// a borrower cannot open a loan in someone else's name
	resp, env := s.call(t, fiber.MethodPost, "/api/v1/loans", fiber.Map{
		"tool_id":             tool.ID,
		"borrower_id":         s.other.ID,
		"quantity":            2,
		"planned_return_date": planned,
		"purpose":             "workshop",
	}, s.borrower)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	id := loanID(t, env)

	resp, _ = s.call(t, fiber.MethodGet, fmt.Sprintf("/api/v1/loans/%d", id), nil, s.borrower)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = s.call(t, fiber.MethodGet, fmt.Sprintf("/api/v1/loans/%d", id), nil, s.other)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodPut, fmt.Sprintf("/api/v1/loans/%d/approve", id), nil, s.borrower)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// lending before approval is a precondition failure
	resp, _ = s.call(t, fiber.MethodPut, fmt.Sprintf("/api/v1/loans/%d/lend", id), nil, s.staff)
	assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)

	resp, env = s.call(t, fiber.MethodPut, fmt.Sprintf("/api/v1/loans/%d/approve", id), fiber.Map{"note": "ok"}, s.staff)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	resp, env = s.call(t, fiber.MethodPut, fmt.Sprintf("/api/v1/loans/%d/lend", id), nil, s.staff)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	// buckets must sum to the quantity
	resp, _ = s.call(t, fiber.MethodPost, fmt.Sprintf("/api/v1/loans/%d/return", id),
		fiber.Map{"units_good": 1}, s.staff)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, env = s.call(t, fiber.MethodPost, fmt.Sprintf("/api/v1/loans/%d/return", id),
		fiber.Map{"units_good": 1, "units_damaged": 1}, s.staff)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)

	var data struct {
		Return models.LoanReturn `json:"return"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Return.UnitsGood)
	assert.Equal(t, 1, data.Return.UnitsDamaged)
	assert.True(t, data.Return.Fine.Equal(decimal.Zero))

	resp, _ = s.call(t, fiber.MethodPost, fmt.Sprintf("/api/v1/loans/%d/return", id),
		fiber.Map{"units_good": 2}, s.staff)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	stored, err := s.repos.Tools.GetByID(context.Background(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.StockAvailable)
	assert.Equal(t, 1, stored.StockUnderRepair)

	resp, _ = s.call(t, fiber.MethodPost, "/api/v1/loans/999/return", fiber.Map{"units_good": 1}, s.staff)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.call(t, fiber.MethodGet, "/api/v1/loans/abc", nil, s.staff)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestImportOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.seedUser(t, "admin", domain.RoleAdmin)

	sheet := "Nama Alat,Stok\nHammer,2\nDrill,1\nhammer,4\n"

	resp, _ := s.do(t, multipartUpload(t, "/api/v1/imports/tools/commit", "tools.csv", sheet), s.staff)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(t, multipartUpload(t, "/api/v1/imports/tools/preview", "tools.csv", sheet), admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	var preview services.ImportPreview
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	assert.False(t, preview.Ready)
	assert.Equal(t, "Nama Alat", preview.Mapping["name"])

	resp, env = s.do(t, multipartUpload(t, "/api/v1/imports/tools/commit", "tools.csv", sheet), admin)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var rejected services.ImportRejectedError
	require.NoError(t, json.Unmarshal(env.Details, &rejected))
	require.Len(t, rejected.Duplicates, 2)
	assert.Equal(t, 2, rejected.Duplicates[0].Row)
	assert.Equal(t, 4, rejected.Duplicates[1].Row)

	resp, _ = s.do(t, multipartUpload(t, "/api/v1/imports/tools/commit", "tools.pdf", sheet), admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, env = s.do(t, multipartUpload(t, "/api/v1/imports/tools/commit", "tools.csv", "Nama Alat,Stok\nHammer,2\nDrill,1\n"), admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	var result services.ImportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Created)
}

func TestExportOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedTool(t, "TL-0001", "Hammer", 3)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/exports/tools?format=csv", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, s.staff))
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "tools.csv")
	assert.Equal(t, "no-store, no-cache, must-revalidate", resp.Header.Get(fiber.HeaderCacheControl))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "TL-0001,Hammer")

	resp, _ = s.call(t, fiber.MethodGet, "/api/v1/exports/tools?format=pdf", nil, s.staff)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.Checks["cache"])
}
