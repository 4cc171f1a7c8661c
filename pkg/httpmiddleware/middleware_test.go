package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestWrap_Order(t *testing.T) {
	var calls []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), tag("outer"), tag("middle"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "middle", "inner"}, calls)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "validation failed", map[string]string{
		"preco": "must be positive",
		"nome":  "required",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"code": 400,
		"message": "validation failed",
		"fields": {"nome": "required", "preco": "must be positive"}
	}`, w.Body.String())

	w = httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "jewel not found", nil)
	assert.JSONEq(t, `{"code": 404, "message": "jewel not found"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "generated", incoming: "", reuse: false},
		{name: "reused", incoming: "abc-123", reuse: true},
		{name: "control characters", incoming: "abc\n123", reuse: false},
		{name: "too long", incoming: strings.Repeat("a", 129), reuse: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			require.NotEmpty(t, got)
			assert.Equal(t, got, seen)
			if tt.reuse {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.Len(t, got, 36)
			}
		})
	}
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	find := func(*http.Request) string { return "/api/joias/{id}" }

	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Inside handler")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}),
		RequestID(),
		InjectLogger(zap.New(core)),
		LogRequests(find),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/joias/7", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Inside handler", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	fields := entries[1].ContextMap()
	assert.Equal(t, "Request", entries[1].Message)
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/api/joias/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(2), fields["bytes"])

	logs.TakeAll()
	readyz := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ServeHTTP(httptest.NewRecorder(), readyz)
	assert.Equal(t, 0, logs.FilterMessage("Request").Len())
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/carrinho/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code": 500, "message": "internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantMethods string
		wantCreds   bool
		wantNext    bool
	}{
		{
			name:       "wildcard simple request",
			cfg:        CORSConfig{},
			method:     http.MethodGet,
			origin:     "https://loja.example",
			wantOrigin: "*",
			wantNext:   true,
		},
		{
			name:        "preflight lists patch",
			cfg:         CORSConfig{AllowOrigins: []string{"https://Admin.example"}, MaxAge: 600},
			method:      http.MethodOptions,
			origin:      "https://admin.example",
			preflight:   true,
			wantOrigin:  "https://Admin.example",
			wantMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		},
		{
			name:       "credentials echo origin",
			cfg:        CORSConfig{AllowCredentials: true},
			method:     http.MethodPost,
			origin:     "https://loja.example",
			wantOrigin: "https://loja.example",
			wantCreds:  true,
			wantNext:   true,
		},
		{
			name:     "unknown origin",
			cfg:      CORSConfig{AllowOrigins: []string{"https://loja.example"}},
			method:   http.MethodGet,
			origin:   "https://evil.example",
			wantNext: true,
		},
		{
			name:      "unknown origin preflight",
			cfg:       CORSConfig{AllowOrigins: []string{"https://loja.example"}},
			method:    http.MethodOptions,
			origin:    "https://evil.example",
			preflight: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			h := CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/joias/", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantNext, reached)
			if tt.preflight {
				assert.Equal(t, http.StatusNoContent, w.Code)
			}
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials") == "true")
		})
	}
}

func TestMakeRouteFinder(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/api/joias/{id}", func(http.ResponseWriter, *http.Request) {})
	mux.Patch("/api/admin/pedidos/{id}/status", func(http.ResponseWriter, *http.Request) {})
	find := MakeRouteFinder(mux)

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{method: http.MethodGet, path: "/api/joias/12/", want: "/api/joias/{id}"},
		{method: http.MethodGet, path: "/api/joias/12", want: "/api/joias/{id}"},
		{method: http.MethodPatch, path: "/api/admin/pedidos/3/status/", want: "/api/admin/pedidos/{id}/status"},
		{method: http.MethodGet, path: "/nope", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, find(httptest.NewRequest(tt.method, tt.path, nil)))
		})
	}
}

func TestInstrumentAndLabeler(t *testing.T) {
	find := func(*http.Request) string { return "/api/joias" }
	h := Wrap(okHandler(), Instrument("vejoias-api", find, noopTelemetry{}), Labeler(find))

	for _, path := range []string{"/api/joias", "/livez"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
