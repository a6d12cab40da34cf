// Package service implements service-request booking: members request, providers accept and complete.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"swadharma/backend/internal/apperr"
	notificationdomain "swadharma/backend/internal/notification/domain"
	"swadharma/backend/internal/platform/sanitize"
	"swadharma/backend/internal/servicerequest/domain"
	"swadharma/backend/internal/servicerequest/repository"
	"swadharma/backend/internal/telemetry"
	eventdomain "swadharma/backend/internal/telemetry/domain"
	userdomain "swadharma/backend/internal/user/domain"
)

// Accounts resolves display names and the provider pool.
type Accounts interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	ListActiveByRole(ctx context.Context, role userdomain.Role) ([]*userdomain.User, error)
}

// Notifier stores notifications best-effort.
type Notifier interface {
	Notify(ctx context.Context, batch ...*notificationdomain.Notification) int
}

// Service runs the service-request use cases.
type Service struct {
	requests repository.Repository
	accounts Accounts
	notifier Notifier
	events   *telemetry.Publisher
	log      *zap.Logger
}

// NewService returns a Service.
func NewService(requests repository.Repository, accounts Accounts, notifier Notifier, events *telemetry.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{requests: requests, accounts: accounts, notifier: notifier, events: events, log: log}
}

// CreateInput is the Create request.
type CreateInput struct {
	ServiceType   string `json:"serviceType"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
	Location      string `json:"location"`
	Notes         string `json:"notes"`
}

const maxNoteLength = 1000

func (in *CreateInput) toDomain(memberID string) (*domain.Request, error) {
	typ := domain.ServiceType(strings.TrimSpace(in.ServiceType))
	if !typ.Valid() {
		return nil, apperr.New(apperr.CodeValidation, "Unknown service type")
	}
	req := &domain.Request{
		MemberID:      memberID,
		ServiceType:   typ,
		PreferredDate: strings.TrimSpace(in.PreferredDate),
		PreferredTime: strings.TrimSpace(in.PreferredTime),
		Location:      sanitize.Text(in.Location),
		Notes:         sanitize.Text(in.Notes),
	}
	if req.PreferredDate != "" {
		if _, err := time.Parse("2006-01-02", req.PreferredDate); err != nil {
			return nil, apperr.New(apperr.CodeValidation, "Preferred date must be YYYY-MM-DD")
		}
	}
	if req.PreferredTime != "" {
		if _, err := time.Parse("15:04", req.PreferredTime); err != nil {
			return nil, apperr.New(apperr.CodeValidation, "Preferred time must be HH:MM")
		}
	}
	if len([]rune(req.Notes)) > maxNoteLength || len([]rune(req.Location)) > maxNoteLength {
		return nil, apperr.New(apperr.CodeValidation, "Location or notes are too long")
	}
	return req, nil
}

// Create books a request for memberID and notifies every active provider.
func (s *Service) Create(ctx context.Context, memberID string, in CreateInput) (*domain.Request, error) {
	req, err := in.toDomain(memberID)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperr.Internal(err)
	}
	req.MemberName = s.displayName(ctx, memberID, "A member")
	s.publish(ctx, memberID, eventdomain.TypeServiceRequested, req)

	providers, err := s.accounts.ListActiveByRole(ctx, userdomain.RoleProvider)
	if err != nil {
		s.log.Warn("provider pool lookup failed", zap.String("request_id", req.ID), zap.Error(err))
		return req, nil
	}
	msg := fmt.Sprintf("%s requested %s", req.MemberName, req.ServiceLabel)
	if d, err := time.Parse("2006-01-02", req.PreferredDate); err == nil {
		msg += " on " + d.Format("2 Jan 2006")
	}
	batch := make([]*notificationdomain.Notification, 0, len(providers))
	for _, p := range providers {
		batch = append(batch, &notificationdomain.Notification{
			UserID:      p.ID,
			Type:        notificationdomain.TypeServiceRequestNew,
			Title:       "New Service Request",
			Message:     msg,
			ReferenceID: req.ID,
		})
	}
	s.notifier.Notify(ctx, batch...)
	return req, nil
}

// List returns what the caller may see: a provider gets every pending request plus the
// ones they accepted; everyone else gets their own.
func (s *Service) List(ctx context.Context, userID string, role userdomain.Role) ([]*domain.Request, error) {
	var (
		out []*domain.Request
		err error
	)
	if role == userdomain.RoleProvider {
		out, err = s.requests.ListForProvider(ctx, userID)
	} else {
		out, err = s.requests.ListByMember(ctx, userID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if req == nil {
		return nil, apperr.New(apperr.CodeNotFound, "Service request not found")
	}
	return req, nil
}

var errAlreadyHandled = apperr.New(apperr.CodeAlreadyHandled, "This service request is no longer available")

// Accept assigns a pending request to providerID and notifies the member.
func (s *Service) Accept(ctx context.Context, providerID, id string) (*domain.Request, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, errAlreadyHandled
	}
	updated, err := s.requests.Accept(ctx, id, providerID)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, errAlreadyHandled
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	name := updated.ProviderName
	if name == "" {
		name = "A provider"
	}
	s.notifier.Notify(ctx, &notificationdomain.Notification{
		UserID:      updated.MemberID,
		Type:        notificationdomain.TypeServiceRequestAccepted,
		Title:       "Service Request Accepted",
		Message:     fmt.Sprintf("%s accepted your %s request", name, updated.ServiceLabel),
		ReferenceID: id,
	})
	s.publish(ctx, providerID, eventdomain.TypeServiceAccepted, updated)
	return updated, nil
}

// Complete closes an accepted request. Only the assigned provider may complete it.
func (s *Service) Complete(ctx context.Context, providerID, id string) (*domain.Request, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ProviderID != providerID {
		return nil, apperr.New(apperr.CodeForbidden, "Only the assigned provider can complete this request")
	}
	if req.Status != domain.StatusAccepted {
		return nil, apperr.New(apperr.CodeInvalidStatus, "Only accepted requests can be completed")
	}
	updated, err := s.requests.Complete(ctx, id, providerID)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, apperr.New(apperr.CodeInvalidStatus, "Only accepted requests can be completed")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.Notify(ctx, &notificationdomain.Notification{
		UserID:      updated.MemberID,
		Type:        notificationdomain.TypeServiceRequestCompleted,
		Title:       "Service Completed",
		Message:     fmt.Sprintf("Your %s service has been completed", updated.ServiceLabel),
		ReferenceID: id,
	})
	s.publish(ctx, providerID, eventdomain.TypeServiceCompleted, updated)
	return updated, nil
}

func (s *Service) displayName(ctx context.Context, userID, fallback string) string {
	u, err := s.accounts.GetByID(ctx, userID)
	if err != nil || u == nil || u.Profile == nil || u.Profile.FullName == "" {
		return fallback
	}
	return u.Profile.FullName
}

func (s *Service) publish(ctx context.Context, userID, typ string, req *domain.Request) {
	s.events.Publish(ctx, eventdomain.Event{
		Type:       typ,
		UserID:     userID,
		Resource:   eventdomain.ResourceServiceRequest,
		ResourceID: req.ID,
		Metadata:   map[string]any{"service_type": string(req.ServiceType), "status": string(req.Status)},
	})
}
