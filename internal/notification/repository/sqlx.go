package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/notification/domain"
)

// SQLRepository implements Repository over the notifications table.
// Ids are ksuids so they sort by creation time within equal timestamps.
type SQLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLRepository returns a Repository backed by conn.
func NewSQLRepository(conn *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: conn, now: time.Now}
}

type notificationRow struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	Type      string        `db:"type"`
	Title     string        `db:"title"`
	Message   string        `db:"message"`
	Data      string        `db:"data"`
	IsRead    bool          `db:"is_read"`
	CreatedAt int64         `db:"created_at"`
	ReadAt    sql.NullInt64 `db:"read_at"`
}

func (r *notificationRow) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        domain.Type(r.Type),
		Title:       r.Title,
		Message:     r.Message,
		ReferenceID: r.Data,
		IsRead:      r.IsRead,
		CreatedAt:   db.FromMillis(r.CreatedAt),
		ReadAt:      db.TimePtr(r.ReadAt),
	}
}

func (r *SQLRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = ksuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO notifications
		(id, user_id, type, title, message, data, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)`),
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.ReferenceID, db.ToMillis(n.CreatedAt))
	return err
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, user_id, type, title, message, data, is_read,
		created_at, read_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (r *SQLRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`), userID)
	return n, err
}

func (r *SQLRepository) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`), db.ToMillis(r.now()), id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET is_read = TRUE, read_at = ?
		WHERE user_id = ? AND is_read = FALSE`), db.ToMillis(r.now()), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Repository = (*SQLRepository)(nil)
