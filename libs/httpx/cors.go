package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// corsRules is a CORSPolicy with its header values rendered once.
type corsRules struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	fixed       http.Header
}

func compileCORS(p CORSPolicy) corsRules {
	rules := corsRules{credentials: p.AllowCredentials, fixed: http.Header{}}
	for _, o := range trimmed(p.AllowedOrigins) {
		if o == "*" {
			rules.anyOrigin = true
			continue
		}
		rules.origins = append(rules.origins, o)
	}
	if p.AllowCredentials {
		rules.fixed.Set("Access-Control-Allow-Credentials", "true")
	}
	if m := trimmed(p.AllowedMethods); len(m) > 0 {
		rules.fixed.Set("Access-Control-Allow-Methods", strings.Join(m, ", "))
	}
	if h := trimmed(p.AllowedHeaders); len(h) > 0 {
		rules.fixed.Set("Access-Control-Allow-Headers", strings.Join(h, ", "))
	}
	rules.fixed.Set("Access-Control-Expose-Headers", strings.Join(trimmed(append([]string{RequestIDHeader}, p.ExposedHeaders...)), ", "))
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		rules.fixed.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	return rules
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, if any.
// A wildcard is echoed back as the concrete origin when credentials are allowed.
func (c corsRules) allowOrigin(origin string) (string, bool) {
	for _, o := range c.origins {
		if strings.EqualFold(o, origin) {
			return origin, true
		}
	}
	if !c.anyOrigin {
		return "", false
	}
	if c.credentials {
		return origin, true
	}
	return "*", true
}

// WithCORS answers preflights for allowed origins and decorates their responses.
// Without allowed origins it is a no-op. X-Request-Id is always exposed.
func WithCORS(cfg CORSPolicy) Middleware {
	rules := compileCORS(cfg)
	if len(rules.origins) == 0 && !rules.anyOrigin {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow, ok := rules.allowOrigin(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			for k, v := range rules.fixed {
				h[k] = v
			}
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
