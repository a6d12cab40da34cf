// Package handler exposes household and invite use cases over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/household/domain"
	"swadharma/backend/internal/household/service"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/platform/rbac"
)

// Households is what the household and invite routes call.
type Households interface {
	Create(ctx context.Context, userID string, in service.CreateInput) (*domain.Household, error)
	Get(ctx context.Context, userID, householdID string) (*domain.Household, error)
	UpdateName(ctx context.Context, userID, householdID, name string) (*domain.Household, error)
	Invite(ctx context.Context, userID, householdID string, in service.InviteInput) (*service.InviteResult, error)
	ListInvites(ctx context.Context, userID, householdID string) ([]*domain.Invite, error)
	GetInvite(ctx context.Context, token string) (*service.InviteDetails, error)
	AcceptInvite(ctx context.Context, userID, token string) (*domain.Household, error)
	DeclineInvite(ctx context.Context, userID, token string) error
	UpdateMemberRole(ctx context.Context, userID, householdID, targetID, role string) error
	RemoveMember(ctx context.Context, userID, householdID, targetID string) error
	TransferHead(ctx context.Context, userID, householdID, newHeadID string) error
	Leave(ctx context.Context, userID, householdID string) error
}

// Handler serves /households and /invites.
type Handler struct {
	households Households
}

// NewHandler returns a Handler.
func NewHandler(households Households) *Handler {
	return &Handler{households: households}
}

// Routes mounts the /households routes. All need a bearer token.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.updateName)
		r.Post("/invites", h.invite)
		r.Get("/invites", h.listInvites)
		r.Patch("/members/{userId}", h.updateMemberRole)
		r.Delete("/members/{userId}", h.removeMember)
		r.Post("/transfer", h.transfer)
		r.Post("/leave", h.leave)
	})
}

// GetInvite is public: invitees open the link before signing in.
func (h *Handler) GetInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.households.GetInvite(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, inv)
}

// InviteRoutes mounts the authenticated /invites/{token} actions.
func (h *Handler) InviteRoutes(r chi.Router) {
	r.Post("/{token}/accept", h.accept)
	r.Post("/{token}/decline", h.decline)
}

// call runs fn for the authenticated caller and writes its result with status.
func call(w http.ResponseWriter, r *http.Request, status int, fn func(callerID string) (any, error)) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out, err := fn(caller.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, status, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	call(w, r, http.StatusCreated, func(userID string) (any, error) {
		return h.households.Create(r.Context(), userID, in)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return h.households.Get(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

func (h *Handler) updateName(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return h.households.UpdateName(r.Context(), userID, chi.URLParam(r, "id"), in.Name)
	})
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var in service.InviteInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	call(w, r, http.StatusCreated, func(userID string) (any, error) {
		return h.households.Invite(r.Context(), userID, chi.URLParam(r, "id"), in)
	})
}

func (h *Handler) listInvites(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		invites, err := h.households.ListInvites(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"invites": invites}, nil
	})
}

func (h *Handler) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Role string `json:"role"`
	}
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		target := chi.URLParam(r, "userId")
		if err := h.households.UpdateMemberRole(r.Context(), userID, chi.URLParam(r, "id"), target, in.Role); err != nil {
			return nil, err
		}
		return map[string]any{"userId": target, "role": domain.Role(strings.ToUpper(strings.TrimSpace(in.Role)))}, nil
	})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return map[string]bool{"removed": true}, h.households.RemoveMember(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	})
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NewHeadUserID string `json:"newHeadUserId"`
	}
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return map[string]string{"newHeadUserId": in.NewHeadUserID}, h.households.TransferHead(r.Context(), userID, chi.URLParam(r, "id"), in.NewHeadUserID)
	})
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return map[string]bool{"left": true}, h.households.Leave(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return h.households.AcceptInvite(r.Context(), userID, chi.URLParam(r, "token"))
	})
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	call(w, r, http.StatusOK, func(userID string) (any, error) {
		return map[string]bool{"declined": true}, h.households.DeclineInvite(r.Context(), userID, chi.URLParam(r, "token"))
	})
}
