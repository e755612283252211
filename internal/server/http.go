// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	audithandler "authcore/internal/audit/handler"
	"authcore/internal/authz"
	"authcore/internal/health"
	"authcore/internal/httpx"
	identityhandler "authcore/internal/identity/handler"
	"authcore/internal/platform/rbac"
	"authcore/internal/server/interceptors"
	sessionhandler "authcore/internal/session/handler"
)

// AdminRole is the role required for administrative routes.
const AdminRole = "admin"

// RouterOptions are the handlers and policies the HTTP router is built from.
type RouterOptions struct {
	Auth     *identityhandler.Handler
	Sessions *sessionhandler.Handler
	// Audit serves audit history; nil leaves those routes unmounted.
	Audit *audithandler.Handler
	// Gate authenticates bearer tokens.
	Gate interceptors.Authenticator
	// Authorizer guards the admin routes.
	Authorizer rbac.Authorizer
	OnDenied   rbac.Denied
	Health     *health.Checker
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For / X-Real-IP; nil trusts nobody and keys on RemoteAddr.
	TrustedProxies *interceptors.TrustedProxies
	// RateLimitPerMinute caps requests per client IP on the credential endpoints.
	RateLimitPerMinute int
	Logger             zerolog.Logger
	// ServiceName names the HTTP server span; empty disables otelhttp.
	ServiceName string
}

// Router builds the HTTP handler: ops endpoints, the auth surface, session and audit routes.
func Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(interceptors.ClientIPHTTP(opts.TrustedProxies))
	r.Use(interceptors.RequestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"WWW-Authenticate"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", health.Liveness)
	if opts.Health != nil {
		r.Get("/readyz", opts.Health.Readiness)
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	requireAuth := interceptors.RequireAuth(opts.Gate)
	if opts.Auth != nil {
		opts.Auth.Routes(r, requireAuth, rateLimit(opts.RateLimitPerMinute))
	}
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		if opts.Sessions != nil {
			opts.Sessions.Routes(r)
		}
		if opts.Audit != nil {
			opts.Audit.Routes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(rbac.Require(opts.Authorizer, authz.RequireRoles(AdminRole), opts.OnDenied))
			if opts.Sessions != nil {
				opts.Sessions.AdminRoutes(r)
			}
			if opts.Audit != nil {
				opts.Audit.AdminRoutes(r)
			}
		})
	})

	if opts.ServiceName == "" {
		return r
	}
	return otelhttp.NewHandler(r, opts.ServiceName)
}

// rateLimit limits by the client IP stored by interceptors.ClientIPHTTP. n <= 0 disables limiting.
func rateLimit(n int) func(http.Handler) http.Handler {
	if n <= 0 {
		return nil
	}
	return httprate.Limit(n, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return interceptors.ClientIPFrom(r.Context()), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.RespondJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
				Error:   "rate_limited",
				Message: "too many requests",
			})
		}),
	)
}
