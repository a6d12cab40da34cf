// Package handler exposes service-request booking over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/platform/rbac"
	"swadharma/backend/internal/servicerequest/domain"
	"swadharma/backend/internal/servicerequest/service"
	userdomain "swadharma/backend/internal/user/domain"
)

// Requests is what the service-request routes call.
type Requests interface {
	Create(ctx context.Context, memberID string, in service.CreateInput) (*domain.Request, error)
	List(ctx context.Context, userID string, role userdomain.Role) ([]*domain.Request, error)
	Accept(ctx context.Context, providerID, id string) (*domain.Request, error)
	Complete(ctx context.Context, providerID, id string) (*domain.Request, error)
}

// Handler serves /service-requests.
type Handler struct {
	requests Requests
}

// NewHandler returns a Handler.
func NewHandler(requests Requests) *Handler {
	return &Handler{requests: requests}
}

// Routes mounts the routes. Mount behind middleware.Authenticate; role guards are applied here.
func (h *Handler) Routes(r chi.Router) {
	r.With(rbac.RequireRole(userdomain.RoleMember)).Post("/", h.create)
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireRole(userdomain.RoleProvider))
		r.Post("/{id}/accept", h.accept)
		r.Post("/{id}/complete", h.complete)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var in service.CreateInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	req, err := h.requests.Create(r.Context(), caller.ID, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Created(w, r, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	reqs, err := h.requests.List(r.Context(), caller.ID, caller.Role)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]any{"requests": reqs})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.Accept)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.Complete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*domain.Request, error)) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	req, err := fn(r.Context(), caller.ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, req)
}
