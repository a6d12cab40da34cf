package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/audit/domain"
	"swadharma/backend/internal/db"
)

// SQLRepository implements Repository over the audit_logs table.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository returns a Repository backed by conn.
func NewSQLRepository(conn *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: conn}
}

type auditRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Action    string `db:"action"`
	Resource  string `db:"resource"`
	IP        string `db:"ip"`
	Metadata  string `db:"metadata"`
	CreatedAt int64  `db:"created_at"`
}

func (r auditRow) toDomain() *domain.AuditLog {
	return &domain.AuditLog{
		ID:        r.ID,
		UserID:    r.UserID,
		Action:    r.Action,
		Resource:  r.Resource,
		IP:        r.IP,
		Metadata:  r.Metadata,
		CreatedAt: db.FromMillis(r.CreatedAt),
	}
}

// Create inserts a. A repeated id yields ErrDuplicate.
func (r *SQLRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, db.ToMillis(a.CreatedAt))
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ListByUser returns the newest entries for userID, newest first.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT id, user_id, action, resource, ip, metadata, created_at FROM audit_logs
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

var _ Repository = (*SQLRepository)(nil)
