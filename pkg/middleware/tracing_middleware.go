package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.22.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/helpers"
)

// TracingMiddleware creates a root span for each write request.
// Service and provider client spans become its children.
type TracingMiddleware struct {
	tracerProvider trace.TracerProvider
	logger         *logrus.Logger
	propagator     propagation.TextMapPropagator
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(tracerProvider trace.TracerProvider, logger *logrus.Logger) *TracingMiddleware {
	return &TracingMiddleware{
		tracerProvider: tracerProvider,
		logger:         logger,
		propagator:     otel.GetTextMapPropagator(),
	}
}

func isWriteMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodDelete ||
		method == http.MethodPatch
}

// Middleware returns the echo middleware function. Read requests such as
// the health probe and CORS preflights pass through untraced.
func (m *TracingMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isWriteMethod(req.Method) {
				return next(c)
			}

			// continue an upstream trace when traceparent is present
			ctx := m.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			var span trace.Span
			ctx, span = m.tracerProvider.Tracer("http.request").Start(ctx, req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				semconv.HTTPMethodKey.String(req.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPRequestContentLengthKey.Int64(req.ContentLength),
				attribute.String("http.user_agent", req.UserAgent()),
				attribute.String("http.request_id", helpers.GetRequestId(c)),
			)
			if ip := c.RealIP(); ip != "" {
				span.SetAttributes(attribute.String("http.client_ip", ip))
			}

			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				span.RecordError(err)
			}

			status := c.Response().Status
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(status),
				semconv.HTTPResponseContentLengthKey.Int64(c.Response().Size),
			)
			if status >= 400 {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "Request processed successfully")
			}

			if m.logger.IsLevelEnabled(logrus.DebugLevel) {
				sc := span.SpanContext()
				m.logger.Debugf("Request traced: trace_id=%s, span_id=%s, route=%s", sc.TraceID(), sc.SpanID(), route)
			}
			return err
		}
	}
}
