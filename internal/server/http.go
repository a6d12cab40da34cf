// Package server assembles the HTTP API and the gRPC health endpoint.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/devotp"
	healthhandler "swadharma/backend/internal/health/handler"
	householdhandler "swadharma/backend/internal/household/handler"
	identityhandler "swadharma/backend/internal/identity/handler"
	"swadharma/backend/internal/metrics"
	notificationhandler "swadharma/backend/internal/notification/handler"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/server/middleware"
	servicerequesthandler "swadharma/backend/internal/servicerequest/handler"
	userhandler "swadharma/backend/internal/user/handler"
)

// Deps holds the use cases and infrastructure the router mounts.
type Deps struct {
	Tokens        middleware.AccessVerifier
	Auth          identityhandler.AuthUseCases
	Users         userhandler.Account
	Households    householdhandler.Households
	Requests      servicerequesthandler.Requests
	Notifications notificationhandler.Inbox
	Health        *healthhandler.Checker
	// DevOTP is the in-memory code store; GET /dev/otp is mounted only when it is set.
	DevOTP devotp.Store
	// MetricsHandler serves /metrics. If nil, the route is not mounted.
	MetricsHandler http.Handler
	Metrics        *metrics.Metrics
	Log            *zap.Logger
}

// Options are the transport tunables.
type Options struct {
	APIVersion      string
	CORSOrigins     []string
	RateLimit       int
	AuthRateLimit   int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
}

// NewRouter returns the API handler. Routes live under /api/{version}; /health, /ready and
// /metrics are served at the root.
func NewRouter(deps Deps, opts Options) http.Handler {
	if opts.APIVersion == "" {
		opts.APIVersion = "v1"
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	unobserved := map[string]bool{"/health": true, "/ready": true, "/metrics": true}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CaptureClientIP)
	r.Use(middleware.Observe(deps.Metrics, deps.Log, unobserved))
	r.Use(middleware.Recover)
	r.Use(chimw.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RateLimit > 0 {
		r.Use(limiter(opts.RateLimit, opts.RateLimitWindow, "Too many requests, please try again later"))
	}
	r.NotFound(httpx.NotFound)
	r.MethodNotAllowed(httpx.MethodNotAllowed)

	if deps.Health != nil {
		r.Get("/health", deps.Health.Health)
		r.Get("/ready", deps.Health.Readiness)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authn := middleware.Authenticate(deps.Tokens)
	auth := identityhandler.NewAuthHandler(deps.Auth)
	households := householdhandler.NewHandler(deps.Households)

	r.Route("/api/"+opts.APIVersion, func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			if opts.AuthRateLimit > 0 {
				a.Use(limiter(opts.AuthRateLimit, opts.RateLimitWindow, "Too many authentication attempts, please try again later"))
			}
			auth.PublicRoutes(a)
			a.With(authn).Post("/logout", auth.Logout)
		})
		api.Route("/invites", func(ir chi.Router) {
			ir.Get("/{token}", households.GetInvite)
			ir.With(authn).Group(households.InviteRoutes)
		})
		if deps.DevOTP != nil {
			api.Get("/dev/otp", identityhandler.DevOTP(deps.DevOTP))
		}

		api.Group(func(p chi.Router) {
			p.Use(authn)
			p.Route("/users/me", func(u chi.Router) {
				userhandler.NewHandler(deps.Users).Routes(u)
				u.Post("/change-password", auth.ChangePassword)
			})
			p.Route("/households", households.Routes)
			p.Route("/service-requests", servicerequesthandler.NewHandler(deps.Requests).Routes)
			p.Route("/notifications", notificationhandler.NewHandler(deps.Notifications).Routes)
		})
	})
	return r
}

// limiter limits requests per client IP and answers RATE_LIMITED in the API envelope.
func limiter(limit int, window time.Duration, message string) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, r, apperr.New(apperr.CodeRateLimit, message))
		}),
	)
}
