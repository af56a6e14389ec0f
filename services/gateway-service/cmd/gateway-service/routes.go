package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/interviewdesk/platform/libs/auth"
	"github.com/interviewdesk/platform/libs/httpx"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Identity headers forwarded to upstream services. Client-supplied copies are dropped.
const (
	headerUserID     = "X-User-Id"
	headerStaffEmail = "X-Staff-Email"
	headerRole       = "X-Role"
)

type routeConfig struct {
	SchedulingURL *url.URL
	Verifier      auth.Verifier
	Transport     http.RoundTripper
}

func registerRoutes(mux *http.ServeMux, cfg routeConfig) {
	schedulingProxy := newProxy(cfg.SchedulingURL, cfg.Transport)
	staffOnly := func(h http.Handler) http.Handler {
		return requireAuth(requireRole(h, auth.RoleAdmin, auth.RoleRecruiter), cfg.Verifier)
	}

	registerProxy(mux, "/api/v1/public", stripIdentity(schedulingProxy))
	registerProxy(mux, "/api/v1/schedules", staffOnly(schedulingProxy))
	registerProxy(mux, "/api/v1/candidates", staffOnly(schedulingProxy))
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	if transport != nil {
		proxy.Transport = transport
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, _ error) {
		httpx.WriteError(w, r, http.StatusBadGateway, httpx.ErrorDetail{
			Code:    "UPSTREAM_UNAVAILABLE",
			Message: "upstream service unavailable",
		})
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(headerUserID)
		r.Header.Del(headerStaffEmail)
		r.Header.Del(headerRole)
		next.ServeHTTP(w, r)
	})
}

func requireAuth(next http.Handler, verifier auth.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if !strings.HasPrefix(authHeader, "Bearer ") || token == "" {
			unauthorized(w, r, "missing or invalid Authorization header")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			unauthorized(w, r, "invalid token")
			return
		}
		if strings.TrimSpace(claims.Email) == "" {
			unauthorized(w, r, "token has no email claim")
			return
		}

		r.Header.Del(headerUserID)
		r.Header.Del(headerStaffEmail)
		r.Header.Del(headerRole)
		r.Header.Set(headerUserID, claims.Sub)
		r.Header.Set(headerStaffEmail, claims.Email)
		r.Header.Set(headerRole, claims.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := allowed[r.Header.Get(headerRole)]; !ok {
			httpx.WriteError(w, r, http.StatusForbidden, httpx.ErrorDetail{
				Code:    "FORBIDDEN",
				Message: "role not allowed",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="interviewdesk"`)
	httpx.WriteError(w, r, http.StatusUnauthorized, httpx.ErrorDetail{
		Code:    "UNAUTHORIZED",
		Message: msg,
	})
}

// healthCheck probes the upstream's grpc.health.v1 service.
func healthCheck(conn grpc.ClientConnInterface) func(context.Context) error {
	client := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("upstream status %s", resp.GetStatus())
		}
		return nil
	}
}
