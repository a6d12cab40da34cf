// Package audit persists domain events as audit log entries.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swadharma/backend/internal/audit/domain"
	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/telemetry"
	eventdomain "swadharma/backend/internal/telemetry/domain"
)

// Logger writes domain events to the audit repository. It is the sink of the events worker.
type Logger struct {
	repo auditrepo.Repository
	log  *zap.Logger
}

// NewLogger returns a Logger that persists to repo.
func NewLogger(repo auditrepo.Repository, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, log: log}
}

// Emit records ev. Redelivered events (same id) are skipped, so the worker may process a message twice.
func (l *Logger) Emit(ctx context.Context, ev *eventdomain.Event) error {
	if l.repo == nil || ev == nil {
		return nil
	}
	entry, err := toEntry(ev)
	if err != nil {
		return err
	}
	err = l.repo.Create(ctx, entry)
	if errors.Is(err, auditrepo.ErrDuplicate) {
		l.log.Debug("audit: duplicate event skipped", zap.String("event_id", ev.ID))
		return nil
	}
	return err
}

func toEntry(ev *eventdomain.Event) (*domain.AuditLog, error) {
	id := ev.ID
	if id == "" {
		id = uuid.New().String()
	}
	ip := ev.IP
	if ip == "" {
		ip = "unknown"
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	resource := ev.Resource
	if ev.ResourceID != "" {
		resource += ":" + ev.ResourceID
	}
	var metadata string
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(b)
	}
	return &domain.AuditLog{
		ID:        id,
		UserID:    ev.UserID,
		Action:    ev.Type,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: at,
	}, nil
}

var _ telemetry.EventEmitter = (*Logger)(nil)
