// Package handler exposes /users/me over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/platform/rbac"
	"swadharma/backend/internal/user/domain"
	"swadharma/backend/internal/user/service"
)

// Account is what the /users/me routes call.
type Account interface {
	Me(ctx context.Context, userID string) (*service.Me, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*service.ProfileView, error)
	ListSessions(ctx context.Context, userID string) ([]service.Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	ListActivity(ctx context.Context, userID string, limit int) ([]service.ActivityEntry, error)
}

// Handler serves the signed-in account's own resources.
type Handler struct {
	users Account
}

// NewHandler returns a Handler.
func NewHandler(users Account) *Handler {
	return &Handler{users: users}
}

// Routes mounts the handlers under /users/me. All routes need a bearer token.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.me)
	r.Patch("/profile", h.updateProfile)
	r.Get("/sessions", h.sessions)
	r.Delete("/sessions/{sessionId}", h.revokeSession)
	r.Get("/activity", h.activity)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	me, err := h.users.Me(r.Context(), caller.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, me)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var upd domain.ProfileUpdate
	if err := httpx.Decode(w, r, &upd); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.users.UpdateProfile(r.Context(), caller.ID, upd)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, p)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	list, err := h.users.ListSessions(r.Context(), caller.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]any{"sessions": list})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.users.RevokeSession(r.Context(), caller.ID, chi.URLParam(r, "sessionId")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]bool{"revoked": true})
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.users.ListActivity(r.Context(), caller.ID, limit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]any{"activity": entries})
}
