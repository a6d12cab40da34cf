// Package handler exposes the notification inbox over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/notification/service"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/platform/rbac"
)

// Inbox is what the notification routes call.
type Inbox interface {
	List(ctx context.Context, userID string) (*service.Inbox, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Handler serves /notifications.
type Handler struct {
	inbox Inbox
}

// NewHandler returns a Handler.
func NewHandler(inbox Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// Routes mounts the routes behind a bearer token.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	inbox, err := h.inbox.List(r.Context(), caller.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, inbox)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.inbox.MarkRead(r.Context(), caller.ID, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]bool{"read": true})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	n, err := h.inbox.MarkAllRead(r.Context(), caller.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]int64{"marked": n})
}
