package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/server/middleware"
	"swadharma/backend/internal/servicerequest/domain"
	"swadharma/backend/internal/servicerequest/service"
	userdomain "swadharma/backend/internal/user/domain"
)

type stubRequests struct {
	listedRole userdomain.Role
	acceptErr  error
}

func (s *stubRequests) Create(ctx context.Context, memberID string, in service.CreateInput) (*domain.Request, error) {
	return &domain.Request{ID: "r1", MemberID: memberID, ServiceType: domain.ServiceType(in.ServiceType)}, nil
}

func (s *stubRequests) List(ctx context.Context, userID string, role userdomain.Role) ([]*domain.Request, error) {
	s.listedRole = role
	return []*domain.Request{{ID: "r1"}}, nil
}

func (s *stubRequests) Accept(ctx context.Context, providerID, id string) (*domain.Request, error) {
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	return &domain.Request{ID: id, ProviderID: providerID, Status: domain.StatusAccepted}, nil
}

func (s *stubRequests) Complete(ctx context.Context, providerID, id string) (*domain.Request, error) {
	return &domain.Request{ID: id, ProviderID: providerID, Status: domain.StatusCompleted}, nil
}

func serveAs(stub *stubRequests, role, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), "u1", role)))
		})
	})
	r.Route("/service-requests", NewHandler(stub).Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestRoleGuards(t *testing.T) {
	tests := []struct {
		name, role, method, path string
		want                     int
	}{
		{"member creates", "MEMBER", http.MethodPost, "/service-requests", http.StatusCreated},
		{"provider cannot create", "PROVIDER", http.MethodPost, "/service-requests", http.StatusForbidden},
		{"provider accepts", "PROVIDER", http.MethodPost, "/service-requests/r1/accept", http.StatusOK},
		{"member cannot accept", "MEMBER", http.MethodPost, "/service-requests/r1/accept", http.StatusForbidden},
		{"provider completes", "PROVIDER", http.MethodPost, "/service-requests/r1/complete", http.StatusOK},
		{"member cannot complete", "MEMBER", http.MethodPost, "/service-requests/r1/complete", http.StatusForbidden},
		{"anyone lists", "ADMIN", http.MethodGet, "/service-requests", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveAs(&stubRequests{}, tt.role, tt.method, tt.path, `{"serviceType":"HomePooja"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestList_PassesRole(t *testing.T) {
	stub := &stubRequests{}
	serveAs(stub, "PROVIDER", http.MethodGet, "/service-requests", "")
	if stub.listedRole != userdomain.RoleProvider {
		t.Errorf("role = %q", stub.listedRole)
	}
}

func TestAccept_Conflict(t *testing.T) {
	stub := &stubRequests{acceptErr: apperr.New(apperr.CodeAlreadyHandled, "This service request is no longer available")}
	rec := serveAs(stub, "PROVIDER", http.MethodPost, "/service-requests/r1/accept", "")
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "ALREADY_HANDLED") {
		t.Errorf("%d %s", rec.Code, rec.Body.String())
	}
}
