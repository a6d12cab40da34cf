package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/notification/domain"
)

type memRepo struct {
	mu      sync.Mutex
	items   []*domain.Notification
	failFor map[string]bool
}

func (m *memRepo) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[n.UserID] {
		return errors.New("insert failed")
	}
	n.ID = n.UserID + "-" + n.Title
	m.items = append(m.items, n)
	return nil
}

func (m *memRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.UserID == userID && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id && it.UserID == userID {
			it.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, it := range m.items {
		if it.UserID == userID && !it.IsRead {
			it.IsRead = true
			n++
		}
	}
	return n, nil
}

func TestNotify_FailuresAreIsolated(t *testing.T) {
	repo := &memRepo{failFor: map[string]bool{"p2": true}}
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewService(repo, nil, zap.New(core))

	var batch []*domain.Notification
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		batch = append(batch, &domain.Notification{UserID: id, Type: domain.TypeServiceRequestNew, Title: "new"})
	}
	if got := svc.Notify(context.Background(), batch...); got != 3 {
		t.Errorf("stored = %d, want 3", got)
	}
	if len(repo.items) != 3 {
		t.Errorf("items = %d", len(repo.items))
	}
	if logs.Len() != 1 || logs.All()[0].ContextMap()["user_id"] != "p2" {
		t.Errorf("logs = %+v", logs.All())
	}
}

func TestNotify_Empty(t *testing.T) {
	if got := NewService(&memRepo{}, nil, nil).Notify(context.Background()); got != 0 {
		t.Errorf("stored = %d", got)
	}
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, nil, nil)
	svc.Notify(ctx,
		&domain.Notification{UserID: "m1", Title: "a"},
		&domain.Notification{UserID: "m1", Title: "b"},
		&domain.Notification{UserID: "m2", Title: "c"},
	)

	inbox, err := svc.List(ctx, "m1")
	if err != nil || len(inbox.Notifications) != 2 || inbox.UnreadCount != 2 {
		t.Fatalf("List = %+v, %v", inbox, err)
	}
	if err := svc.MarkRead(ctx, "m1", "m2-c"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("MarkRead foreign = %v", err)
	}
	if err := svc.MarkRead(ctx, "m1", "m1-a"); err != nil {
		t.Errorf("MarkRead: %v", err)
	}
	if n, err := svc.MarkAllRead(ctx, "m1"); err != nil || n != 1 {
		t.Errorf("MarkAllRead = %d, %v", n, err)
	}
	inbox, _ = svc.List(ctx, "m1")
	if inbox.UnreadCount != 0 {
		t.Errorf("unread = %d", inbox.UnreadCount)
	}
}
