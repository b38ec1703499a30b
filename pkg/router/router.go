package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/controller"
	"github.com/civicpulse/platform-token/pkg/middleware"
)

// FunctionsPrefix mirrors the edge function gateway path so existing clients
// can keep their URLs.
const FunctionsPrefix = "/functions/v1"

// Options configures the HTTP surface
type Options struct {
	// APIKey, when set, is required in the apikey header of token requests
	APIKey string
	Logger *logrus.Logger
	Tracer trace.TracerProvider
}

// New builds the echo instance serving the token endpoints
func New(tokens *controller.TokenController, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	tracing := middleware.NewTracingMiddleware(opts.Tracer, opts.Logger)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.RequestLoggerMiddleware(opts.Logger))
	e.Use(middleware.CORSMiddleware())
	e.Use(tracing.Middleware())

	e.GET("/healthz", tokens.Health)

	gate := middleware.APIKeyAuthMiddleware(opts.APIKey)
	for _, prefix := range []string{"", FunctionsPrefix} {
		e.POST(prefix+"/jwt-exchange", tokens.Exchange, gate)
		e.POST(prefix+"/jwt-validate", tokens.Validate, gate)
	}

	return e
}
