// Package service delivers in-app notifications and serves the notification inbox.
package service

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/metrics"
	"swadharma/backend/internal/notification/domain"
	"swadharma/backend/internal/notification/repository"
)

// fanOutLimit bounds concurrent inserts for one Notify call.
const fanOutLimit = 8

// inboxSize is how many notifications List returns.
const inboxSize = 50

// Service writes and reads notifications.
type Service struct {
	repo    repository.Repository
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewService returns a Service. m may be nil.
func NewService(repo repository.Repository, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, metrics: m, log: log}
}

// Notify inserts every notification independently and concurrently. A failed insert is
// logged and counted; it never fails the caller. Returns how many were stored.
func (s *Service) Notify(ctx context.Context, batch ...*domain.Notification) int {
	var (
		g      errgroup.Group
		stored atomic.Int64
	)
	g.SetLimit(fanOutLimit)
	for _, n := range batch {
		g.Go(func() error {
			if err := s.repo.Create(ctx, n); err != nil {
				s.log.Warn("notification not stored",
					zap.String("user_id", n.UserID),
					zap.String("type", string(n.Type)),
					zap.String("reference_id", n.ReferenceID),
					zap.Error(err))
				s.metrics.NotificationSent(string(n.Type), metrics.ResultFailure)
				return nil
			}
			stored.Add(1)
			s.metrics.NotificationSent(string(n.Type), metrics.ResultSuccess)
			return nil
		})
	}
	_ = g.Wait()
	return int(stored.Load())
}

// Inbox is the newest notifications plus the total unread count.
type Inbox struct {
	Notifications []*domain.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
}

// List returns userID's inbox.
func (s *Service) List(ctx context.Context, userID string) (*Inbox, error) {
	items, err := s.repo.ListByUser(ctx, userID, inboxSize)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Inbox{Notifications: items, UnreadCount: unread}, nil
}

// MarkRead marks one of userID's notifications read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of userID read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}
