// Package httpmiddleware holds the net/http middleware shared by the API
// server: recovery, CORS, rate limiting, request ids, logging and
// OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares so that the first one is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for _, m := range slices.Backward(middlewares) {
		h = m(h)
	}
	return h
}

// RouteFinder returns the route pattern serving r, or "" when no route
// matches.
type RouteFinder func(r *http.Request) string

// MakeRouteFinder resolves patterns against mux without serving the request,
// so middleware outside the router can label spans and logs by route.
func MakeRouteFinder(mux *chi.Mux) RouteFinder {
	return func(r *http.Request) string {
		path := r.URL.Path
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		return mux.Find(chi.NewRouteContext(), r.Method, path)
	}
}

// WriteError writes the JSON error envelope used by every API response:
// {"code": status, "message": msg, "fields": {...}}. fields is omitted
// when empty.
func WriteError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		slices.Sort(names)

		e.FieldStart("fields")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(fields[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
