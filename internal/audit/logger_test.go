package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"swadharma/backend/internal/audit/domain"
	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/db/testdb"
	eventdomain "swadharma/backend/internal/telemetry/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogger_Emit_MapsEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	ev := &eventdomain.Event{
		ID: "e1", Type: eventdomain.TypeMemberRemoved, UserID: "u1",
		Resource: eventdomain.ResourceHousehold, ResourceID: "h1", IP: "10.0.0.9",
		Metadata: map[string]any{"memberUserId": "u2"}, OccurredAt: at,
	}
	if err := NewLogger(repo, nil).Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d", len(repo.entries))
	}
	got := repo.entries[0]
	want := domain.AuditLog{
		ID: "e1", UserID: "u1", Action: "member_removed", Resource: "household:h1",
		IP: "10.0.0.9", Metadata: `{"memberUserId":"u2"}`, CreatedAt: at,
	}
	if *got != want {
		t.Errorf("entry = %+v, want %+v", *got, want)
	}
}

func TestLogger_Emit_Defaults(t *testing.T) {
	repo := &mockAuditRepo{}
	if err := NewLogger(repo, nil).Emit(context.Background(), &eventdomain.Event{Type: "login_failure", Resource: "auth"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got := repo.entries[0]
	if got.ID == "" || got.IP != "unknown" || got.CreatedAt.IsZero() || got.Metadata != "" {
		t.Errorf("entry = %+v", got)
	}
}

func TestLogger_Emit_RepoError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	if err := NewLogger(repo, nil).Emit(context.Background(), &eventdomain.Event{ID: "e1"}); err == nil {
		t.Error("expected repository error")
	}
	if err := NewLogger(nil, nil).Emit(context.Background(), &eventdomain.Event{ID: "e1"}); err != nil {
		t.Errorf("nil repo Emit: %v", err)
	}
}

func TestLogger_Emit_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := auditrepo.NewSQLRepository(testdb.New(t))
	l := NewLogger(repo, nil)
	ev := &eventdomain.Event{ID: "e1", Type: "logout", UserID: "u1", Resource: "auth"}

	for i := 0; i < 2; i++ {
		if err := l.Emit(ctx, ev); err != nil {
			t.Fatalf("Emit #%d: %v", i+1, err)
		}
	}
	got, err := repo.ListByUser(ctx, "u1", 10)
	if err != nil || len(got) != 1 {
		t.Errorf("ListByUser = %d entries, %v", len(got), err)
	}
}
