package middleware

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/labstack/echo/v4"
)

// Logger writes one line per request. Health checks and /metrics scrapes are logged at debug.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			ctx := req.Context()
			status := c.Response().Status
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":  context.GetRequestID(ctx),
				"tenant_id":   context.GetTenantID(ctx),
				"locale":      context.GetLocale(ctx),
				"method":      req.Method,
				"route":       c.Path(),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       c.Response().Size,
			})

			switch {
			case isHealthCheck(c.Path()):
				log.Debug("Request")
			case status >= http.StatusInternalServerError:
				log.Error("Request")
			default:
				log.Info("Request")
			}

			return nil
		}
	}
}

func isHealthCheck(route string) bool {
	switch route {
	case "/metrics", "/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready":
		return true
	}
	return false
}
