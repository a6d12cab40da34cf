package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/config"
	"swadharma/backend/internal/devotp"
	healthhandler "swadharma/backend/internal/health/handler"
	householdrepo "swadharma/backend/internal/household/repository"
	householdservice "swadharma/backend/internal/household/service"
	identityservice "swadharma/backend/internal/identity/service"
	"swadharma/backend/internal/metrics"
	notificationrepo "swadharma/backend/internal/notification/repository"
	notificationservice "swadharma/backend/internal/notification/service"
	"swadharma/backend/internal/otp"
	otprepo "swadharma/backend/internal/otp/repository"
	"swadharma/backend/internal/otp/sms"
	"swadharma/backend/internal/policy/engine"
	"swadharma/backend/internal/security"
	servicerequestrepo "swadharma/backend/internal/servicerequest/repository"
	servicerequestservice "swadharma/backend/internal/servicerequest/service"
	sessionrepo "swadharma/backend/internal/session/repository"
	"swadharma/backend/internal/telemetry"
	userrepo "swadharma/backend/internal/user/repository"
	userservice "swadharma/backend/internal/user/service"
)

// Version is reported by /health. Set at build time with -ldflags "-X swadharma/backend/internal/server.Version=...".
var Version = "dev"

// App is the wired API.
type App struct {
	Router http.Handler
	Health *healthhandler.Checker
	Auth   *identityservice.AuthService
}

// Build wires stores, use cases and transport on conn. events may be nil; reg receives the
// Prometheus collectors and, when it is also a Gatherer, backs /metrics.
func Build(ctx context.Context, cfg *config.Config, conn *sqlx.DB, events *telemetry.Publisher, reg prometheus.Registerer, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens, err := security.NewTokenProvider(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("token provider: %w", err)
	}
	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	m := metrics.New(reg, cfg.ServiceName)

	users := userrepo.NewSQLRepository(conn, hasher, userrepo.LockoutPolicy{
		Threshold: cfg.LockoutThreshold,
		Duration:  cfg.LockoutDuration(),
	})
	otps := otprepo.NewSQLRepository(conn, cfg.OTPExpiry(), cfg.OTPMaxAttempts)
	sessions := sessionrepo.NewSQLRepository(conn, cfg.RefreshTTL())
	households := householdrepo.NewSQLRepository(conn)
	audit := auditrepo.NewSQLRepository(conn)
	notifications := notificationrepo.NewSQLRepository(conn)
	requests := servicerequestrepo.NewSQLRepository(conn)

	var dev devotp.Store
	if cfg.OTPReturnToClient {
		dev = devotp.NewMemoryStore()
		log.Warn("dev OTP mode enabled: codes are served by GET /dev/otp")
	}
	delivery := otp.NewDispatcher(log.Named("otp"), sms.NewClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender), dev)

	auth := identityservice.NewAuthService(users, otps, sessions, delivery, hasher, tokens, events, m, log.Named("auth"),
		identityservice.Config{PasswordMinLength: cfg.PasswordMinLength, OTPExpiry: cfg.OTPExpiry()})
	notifier := notificationservice.NewService(notifications, m, log.Named("notification"))
	health := healthhandler.NewChecker(conn, policy, Version)

	deps := Deps{
		Tokens:        tokens,
		Auth:          auth,
		Users:         userservice.NewUserService(users, households, sessions, audit, events),
		Households:    householdservice.NewHouseholdService(households, users, policy, events, log.Named("household"), cfg.AppURL),
		Requests:      servicerequestservice.NewService(requests, users, notifier, events, log.Named("servicerequest")),
		Notifications: notifier,
		Health:        health,
		DevOTP:        dev,
		Metrics:       m,
		Log:           log.Named("http"),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		deps.MetricsHandler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	router := NewRouter(deps, Options{
		APIVersion:      cfg.APIVersion,
		CORSOrigins:     cfg.CORSOrigins(),
		RateLimit:       cfg.RateLimitMaxRequests,
		AuthRateLimit:   cfg.AuthRateLimitMaxRequests,
		RateLimitWindow: cfg.RateLimitWindowDuration(),
		RequestTimeout:  cfg.RequestTimeoutDuration(),
	})
	return &App{Router: router, Health: health, Auth: auth}, nil
}
