package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	// AllowOrigins lists accepted origins. Empty or "*" accepts any origin.
	AllowOrigins []string
	// AllowMethods defaults to the methods the API routes use.
	AllowMethods []string
	// AllowHeaders, when empty, echoes Access-Control-Request-Headers.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials makes the middleware echo the exact origin instead of
	// "*", since browsers reject credentials with a wildcard.
	AllowCredentials bool
	// MaxAge in seconds for preflight caching. Zero omits the header.
	MaxAge int
}

var defaultCORSMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]string // lower-case -> configured spelling
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		anyOrigin:   len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	if p.methods == "" {
		p.methods = strings.Join(defaultCORSMethods, ", ")
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not accepted.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin {
		if p.credentials {
			return origin
		}
		return "*"
	}
	return p.origins[strings.ToLower(origin)]
}

// varies reports whether responses depend on the Origin header.
func (p *corsPolicy) varies() bool {
	return !p.anyOrigin || p.credentials
}

// CORS answers preflight requests and decorates cross-origin responses.
// Preflights never reach next.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if p.varies() {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := p.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", p.methods)
					if p.headers != "" {
						h.Set("Access-Control-Allow-Headers", p.headers)
					} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					}
					if p.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
