// Package handler exposes the auth use cases over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/devotp"
	"swadharma/backend/internal/identity/service"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/platform/rbac"
	"swadharma/backend/internal/security"
	"swadharma/backend/internal/server/middleware"
	sessiondomain "swadharma/backend/internal/session/domain"
)

// AuthUseCases is what the auth routes call.
type AuthUseCases interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	VerifyOTP(ctx context.Context, in service.VerifyOTPInput) (*service.AuthResult, error)
	SendOTP(ctx context.Context, identifier, purpose string) (*service.SendOTPResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, rawToken string, device sessiondomain.DeviceInfo) (*security.TokenPair, error)
	Logout(ctx context.Context, userID string, in service.LogoutInput) (*service.LogoutResult, error)
	ChangePassword(ctx context.Context, userID string, in service.ChangePasswordInput) (*service.ChangePasswordResult, error)
}

// AuthHandler serves /auth and /users/me/change-password.
type AuthHandler struct {
	auth AuthUseCases
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(auth AuthUseCases) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// PublicRoutes mounts the unauthenticated auth routes.
func (h *AuthHandler) PublicRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/verify-otp", h.verifyOTP)
	r.Post("/send-otp", h.sendOTP)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
}

// Logout needs a bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var in service.LogoutInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.auth.Logout(r.Context(), caller.ID, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, res)
}

// ChangePassword needs a bearer token.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var in service.ChangePasswordInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.auth.ChangePassword(r.Context(), caller.ID, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, res)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Created(w, r, res)
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in service.VerifyOTPInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in.Device = device(r, in.Device)
	res, err := h.auth.VerifyOTP(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, res)
}

type sendOTPRequest struct {
	Identifier string `json:"identifier"`
	Contact    string `json:"contact"`
	Purpose    string `json:"purpose"`
}

func (h *AuthHandler) sendOTP(w http.ResponseWriter, r *http.Request) {
	var in sendOTPRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	identifier := in.Identifier
	if identifier == "" {
		identifier = in.Contact
	}
	res, err := h.auth.SendOTP(r.Context(), identifier, in.Purpose)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, res)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in.Device = device(r, in.Device)
	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, res)
}

type refreshRequest struct {
	RefreshToken string                   `json:"refreshToken"`
	Device       sessiondomain.DeviceInfo `json:"deviceInfo"`
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), in.RefreshToken, device(r, in.Device))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, r, map[string]any{"tokens": pair})
}

// device fills the transport-level fields of the client's device description.
func device(r *http.Request, d sessiondomain.DeviceInfo) sessiondomain.DeviceInfo {
	d.IPAddress = middleware.ClientIP(r.Context())
	if d.UserAgent == "" {
		d.UserAgent = r.UserAgent()
	}
	return d
}

// DevOTP serves the last delivered code for a contact. Mount it only in dev OTP mode.
func DevOTP(store devotp.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contact := strings.TrimSpace(r.URL.Query().Get("contact"))
		if strings.Contains(contact, "@") {
			contact = strings.ToLower(contact)
		}
		purpose := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("purpose")))
		if purpose == "" {
			purpose = "REGISTRATION"
		}
		if contact == "" {
			httpx.WriteError(w, r, apperr.New(apperr.CodeValidation, "Contact is required"))
			return
		}
		code, ok := store.Get(r.Context(), contact, purpose)
		if !ok {
			httpx.WriteError(w, r, apperr.New(apperr.CodeNotFound, "No OTP found for this contact"))
			return
		}
		httpx.OK(w, r, map[string]string{"contact": contact, "purpose": purpose, "otp": code})
	}
}
