package middleware

import (
	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

const (
	// HeaderTenantID is the header key for tenant ID
	HeaderTenantID = "X-Tenant-ID"
	// HeaderUserID is the header key for user ID
	HeaderUserID = "X-User-ID"
	// QueryLocale overrides Accept-Language when present
	QueryLocale = "locale"
)

// SupportedLocales are the locales display strings can be rendered in. The first is the fallback.
var SupportedLocales = []language.Tag{
	language.MustParse("pt-BR"),
	language.AmericanEnglish,
}

var localeMatcher = language.NewMatcher(SupportedLocales)

func Context(defaultLocale string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetTenantID(ctx, req.Header.Get(HeaderTenantID))
			ctx = context.SetUserID(ctx, req.Header.Get(HeaderUserID))
			ctx = context.SetLocale(ctx, ResolveLocale(c.QueryParam(QueryLocale), req.Header.Get("Accept-Language"), defaultLocale))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// ResolveLocale picks the best supported locale, preferring an explicit override.
func ResolveLocale(override, acceptLanguage, fallback string) string {
	header := acceptLanguage
	if override != "" {
		header = override
	}
	if header == "" {
		return fallback
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return fallback
	}

	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return SupportedLocales[index].String()
}
