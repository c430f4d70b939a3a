package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error      { return nil }
func failing(context.Context) error { return errors.New("connection refused") }

func get(t *testing.T, e *echo.Echo, path string) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var response Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return rec.Code, response
}

func TestChecker(t *testing.T) {
	tests := []struct {
		name         string
		database     CheckFunc
		cache        CheckFunc
		expectedCode int
		expected     Status
	}{
		{name: "all healthy", database: ok, cache: ok, expectedCode: http.StatusOK, expected: StatusHealthy},
		{name: "cache down degrades", database: ok, cache: failing, expectedCode: http.StatusOK, expected: StatusDegraded},
		{name: "database down", database: failing, cache: ok, expectedCode: http.StatusServiceUnavailable, expected: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker("test")
			checker.AddCheck("database", true, tt.database)
			checker.AddCheck("redis", false, tt.cache)
			checker.SetReady(true)

			e := echo.New()
			checker.RegisterRoutes(e)

			code, response := get(t, e, "/api/v1/health")
			assert.Equal(t, tt.expectedCode, code)
			assert.Equal(t, tt.expected, response.Status)
			assert.Len(t, response.Checks, 2)

			code, _ = get(t, e, "/api/v1/health/ready")
			assert.Equal(t, tt.expectedCode, code)
		})
	}
}

func TestReadiness_BeforeStartup(t *testing.T) {
	checker := NewChecker("test")
	e := echo.New()
	checker.RegisterRoutes(e)

	code, response := get(t, e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, response.Checks, "startup")

	code, response = get(t, e, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, response.Status)
}
