package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/context"
	clerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		name           string
		override       string
		acceptLanguage string
		want           string
	}{
		{"empty falls back", "", "", "pt-BR"},
		{"english header", "", "en-US,en;q=0.9", "en-US"},
		{"portuguese header", "", "pt-BR,pt;q=0.8", "pt-BR"},
		{"override wins", "en", "pt-BR", "en-US"},
		{"garbage falls back", "", "!!!", "pt-BR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLocale(tt.override, tt.acceptLanguage, "pt-BR"))
		})
	}
}

func TestContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?locale=en-US", nil)
	req.Header.Set(HeaderTenantID, "tenant-1")
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var tenantID, userID, locale, requestID string
	handler := Context("pt-BR")(func(c echo.Context) error {
		ctx := c.Request().Context()
		tenantID = context.GetTenantID(ctx)
		userID = context.GetUserID(ctx)
		locale = context.GetLocale(ctx)
		requestID = context.GetRequestID(ctx)
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "en-US", locale)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequireTenant(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireTenant()(func(c echo.Context) error { return nil })(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
	}{
		{"domain error", clerrors.NewSystemFieldError("f1", "deleted"), http.StatusForbidden, "system_field"},
		{"echo error", echo.NewHTTPError(http.StatusNotFound, "not found"), http.StatusNotFound, ""},
		{"unknown error", assert.AnError, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			Error(testLogger())(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.errorType != "" {
				assert.Equal(t, tt.errorType, body.Meta["error_type"])
			}
		})
	}
}

func TestLogger(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil), rec)

	err := Logger(testLogger())(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})(c)

	require.NoError(t, err, "the error is rendered, not returned")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIsHealthCheck(t *testing.T) {
	assert.True(t, isHealthCheck("/metrics"))
	assert.True(t, isHealthCheck("/api/v1/health/ready"))
	assert.False(t, isHealthCheck("/api/v1/rules"))
}
