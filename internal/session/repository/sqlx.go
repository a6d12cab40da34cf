package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/security"
	"swadharma/backend/internal/session/domain"
)

// SQLRepository implements Repository on sqlx.
type SQLRepository struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLRepository returns a token store whose sessions expire after ttl (30 days when zero).
func NewSQLRepository(conn *sqlx.DB, ttl time.Duration) *SQLRepository {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SQLRepository{db: conn, ttl: ttl, now: time.Now}
}

type tokenRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	TokenHash     string         `db:"token_hash"`
	TokenType     string         `db:"token_type"`
	IPAddress     string         `db:"ip_address"`
	UserAgent     string         `db:"user_agent"`
	DeviceInfo    string         `db:"device_info"`
	IssuedAt      int64          `db:"issued_at"`
	ExpiresAt     int64          `db:"expires_at"`
	RevokedAt     sql.NullInt64  `db:"revoked_at"`
	RevokedReason sql.NullString `db:"revoked_reason"`
}

func (r *tokenRow) toDomain() *domain.RefreshToken {
	t := &domain.RefreshToken{
		ID:            r.ID,
		UserID:        r.UserID,
		TokenHash:     r.TokenHash,
		TokenType:     r.TokenType,
		Device:        domain.DeviceInfo{IPAddress: r.IPAddress, UserAgent: r.UserAgent},
		IssuedAt:      db.FromMillis(r.IssuedAt),
		ExpiresAt:     db.FromMillis(r.ExpiresAt),
		RevokedAt:     db.TimePtr(r.RevokedAt),
		RevokedReason: r.RevokedReason.String,
	}
	if r.DeviceInfo != "" {
		t.Device.Device = json.RawMessage(r.DeviceInfo)
	}
	return t
}

const tokenColumns = `id, user_id, token_hash, token_type, ip_address, user_agent, device_info,
	issued_at, expires_at, revoked_at, revoked_reason`

func (r *SQLRepository) Store(ctx context.Context, userID, rawToken string, device domain.DeviceInfo) (*domain.RefreshToken, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	t := &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: security.HashToken(rawToken),
		TokenType: domain.TokenTypeRefresh,
		Device:    device,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
	var deviceJSON string
	if len(device.Device) > 0 && json.Valid(device.Device) {
		deviceJSON = string(device.Device)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO refresh_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)`),
		t.ID, t.UserID, t.TokenHash, t.TokenType, device.IPAddress, device.UserAgent, deviceJSON,
		db.ToMillis(t.IssuedAt), db.ToMillis(t.ExpiresAt))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLRepository) Validate(ctx context.Context, rawToken string) (string, bool, error) {
	var row tokenRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`),
		security.HashToken(rawToken))
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	t := row.toDomain()
	if !t.Valid(r.now()) || !security.TokenHashEqual(rawToken, t.TokenHash) {
		return "", false, nil
	}
	return t.UserID, true, nil
}

func (r *SQLRepository) Revoke(ctx context.Context, rawToken, reason string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE refresh_tokens SET revoked_at = ?, revoked_reason = ?
		WHERE token_hash = ? AND revoked_at IS NULL`),
		db.ToMillis(r.now()), reason, security.HashToken(rawToken))
	return err
}

func (r *SQLRepository) RevokeByID(ctx context.Context, userID, id, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE refresh_tokens SET revoked_at = ?, revoked_reason = ?
		WHERE id = ? AND user_id = ? AND revoked_at IS NULL`),
		db.ToMillis(r.now()), reason, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLRepository) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE refresh_tokens SET revoked_at = ?, revoked_reason = ?
		WHERE user_id = ? AND revoked_at IS NULL`),
		db.ToMillis(r.now()), reason, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) RevokeIssuedBefore(ctx context.Context, userID string, cutoff time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE refresh_tokens SET revoked_at = ?, revoked_reason = ?
		WHERE user_id = ? AND revoked_at IS NULL AND issued_at < ?`),
		db.ToMillis(r.now()), reason, userID, db.ToMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActive returns userID's unrevoked, unexpired sessions, newest first.
func (r *SQLRepository) ListActive(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	var rows []tokenRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+tokenColumns+` FROM refresh_tokens
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ? ORDER BY issued_at DESC`),
		userID, db.ToMillis(r.now()))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RefreshToken, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

var _ Repository = (*SQLRepository)(nil)
