package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/fields"
	"github.com/Ramsey-B/clover/pkg/routes/overlays"
	"github.com/Ramsey-B/clover/pkg/routes/qualification"
	"github.com/Ramsey-B/clover/pkg/routes/resolve"
	"github.com/Ramsey-B/clover/pkg/routes/rules"
	"github.com/Ramsey-B/clover/pkg/routes/values"
)

// NewServer builds the echo server for the api. authentication may be nil, in
// which case tenant and user come from the X-Tenant-ID and X-User-ID headers.
func (a *App) NewServer(authentication echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
	}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context(a.cfg.DefaultLocale))
	e.Use(middleware.Logger(a.logger))

	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if authentication != nil {
		api.Use(authentication)
	}
	api.Use(middleware.RequireTenant())

	services := a.services
	rules.NewHandler(services.Rules).Register(api.Group("/rules"))
	fields.NewHandler(services.Definitions).Register(api)
	overlays.NewHandler(services.Resolver).Register(api)
	resolve.NewHandler(services.Resolver).Register(api)
	values.NewHandler(services.Values).Register(api)
	qualification.NewHandler(services.Evaluator).Register(api)

	return e
}

// Serve runs the api until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	var authentication echo.MiddlewareFunc
	if a.cfg.AuthEnabled {
		var err error
		authentication, err = middleware.Authentication(ctx, a.logger, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return err
		}
	}

	e := a.NewServer(authentication)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      e,
		ReadTimeout:  time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("Server listening on port %d", a.cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.health.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("Shutting down server")
	return server.Shutdown(shutdownCtx)
}
