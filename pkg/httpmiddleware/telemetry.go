package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry provides the OpenTelemetry providers, as *app.Telemetry does.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

func isHealthCheck(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// Instrument starts a server span and records otelhttp metrics for every
// request except health checks. Spans are named "METHOD /route/{pattern}".
func Instrument(service string, find RouteFinder, t Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithMeterProvider(t.MeterProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithFilter(func(r *http.Request) bool { return !isHealthCheck(r) }),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if route := find(r); route != "" {
					return r.Method + " " + route
				}
				return r.Method
			}),
		)
	}
}

// Labeler adds the http.route attribute to the otelhttp metrics and span
// of the request. It must run inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route := find(r); route != "" {
				attr := attribute.String("http.route", route)
				if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
					labeler.Add(attr)
				}
				trace.SpanFromContext(r.Context()).SetAttributes(attr)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder remembers the status code and body size written.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// LogRequests logs one line per request with its route, status and
// duration. Health checks are not logged. The request logger gains the trace id so
// handlers logging later share it.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthCheck(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				ctx = zctx.With(ctx, zap.String("trace_id", sc.TraceID().String()))
				r = r.WithContext(ctx)
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", find(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
			}
			lg := zctx.From(ctx)
			if rec.status >= http.StatusInternalServerError {
				lg.Error("Request failed", fields...)
				return
			}
			lg.Info("Request", fields...)
		})
	}
}
