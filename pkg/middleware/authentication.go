package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	utils "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type UserClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Locale   string `json:"locale"`
}

// Authentication verifies bearer tokens against an OIDC issuer and takes the
// tenant and user from the token claims instead of the request headers.
func Authentication(ctx context.Context, logger ectologger.Logger, issuer string, clientID string) (echo.MiddlewareFunc, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "oidc provider")
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			raw := strings.TrimPrefix(auth, "Bearer ")
			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			idToken, err := verifier.Verify(verifyCtx, raw)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var claims UserClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "cannot parse claims")
			}
			if claims.TenantID == "" {
				logger.WithContext(ctx).Warn("token has no tenant claim")
				return echo.NewHTTPError(http.StatusForbidden, "token is not bound to a tenant")
			}

			ctx = utils.SetUserID(ctx, claims.Sub)
			ctx = utils.SetTenantID(ctx, claims.TenantID)
			if claims.Locale != "" {
				ctx = utils.SetLocale(ctx, ResolveLocale(claims.Locale, "", utils.GetLocale(ctx)))
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}, nil
}

// RequireTenant rejects requests that reach tenant-scoped routes without a tenant.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if utils.GetTenantID(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing tenant")
			}
			return next(c)
		}
	}
}
