package handler

import (
	"net/http"
	"time"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/platform/httpx"
)

// Health answers liveness; it never touches dependencies.
func (c *Checker) Health(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, r, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   c.version,
	})
}

// Readiness answers 200 when every dependency probe passes and 503 otherwise.
func (c *Checker) Readiness(w http.ResponseWriter, r *http.Request) {
	checks, ok := c.Ready(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.New(apperr.CodeUnavailable, "Service not ready").
			WithDetails(map[string]any{"checks": checks}))
		return
	}
	httpx.OK(w, r, map[string]any{"status": "ready", "checks": checks})
}
