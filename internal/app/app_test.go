package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.KafkaBrokers = nil

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	a := New(cfg, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), "test")
	a.db = sqlx.NewDb(mockDB, "postgres")
	a.cache = cache.NewMemory(time.Minute)
	require.NoError(t, a.buildServices())
	return a, mock
}

func request(e *echo.Echo, target string, tenant bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if tenant {
		req.Header.Set(middleware.HeaderTenantID, "tenant-1")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBuildServices(t *testing.T) {
	a, _ := newTestApp(t)
	services := a.Services()

	require.NotNil(t, services)
	assert.IsType(t, events.Noop{}, services.Emitter, "no brokers means no events")
	assert.NotNil(t, services.Evaluator)
	assert.NotNil(t, services.Resolver.Catalog())
}

func TestServer_Resolve(t *testing.T) {
	a, mock := newTestApp(t)
	e := a.NewServer(nil)

	mock.ExpectQuery("SELECT (.+) FROM field_overlays WHERE").
		WithArgs("tenant-1", "contato").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM field_definitions WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "entity_kind", "slug", "name", "declared_type", "required", "active"}).
			AddRow("fd-1", "tenant-1", "contato", "budget", "Orçamento", "decimal", true, true))

	rec := request(e, "/api/v1/contato/resolve?keys=name,custom_budget&locale=en-US", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var fields []models.ResolvedField
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	require.Len(t, fields, 2)
	assert.Equal(t, "Name", fields[0].Label)
	assert.Equal(t, "Orçamento", fields[1].Label)
	assert.True(t, fields[1].Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_Surface(t *testing.T) {
	a, _ := newTestApp(t)
	e := a.NewServer(nil)

	rec := request(e, "/api/v1/rules", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "tenant routes need a tenant")

	rec = request(e, "/api/v1/health/live", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(e, "/api/v1/health/ready", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready until serving")

	rec = request(e, "/metrics", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
