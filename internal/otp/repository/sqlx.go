package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/otp/domain"
	"swadharma/backend/internal/security"
)

// SQLRepository implements Repository on sqlx.
type SQLRepository struct {
	db          *sqlx.DB
	expiry      time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewSQLRepository returns an OTP store. Zero expiry or maxAttempts fall back to 5 minutes and 3.
func NewSQLRepository(conn *sqlx.DB, expiry time.Duration, maxAttempts int) *SQLRepository {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &SQLRepository{db: conn, expiry: expiry, maxAttempts: maxAttempts, now: time.Now}
}

type codeRow struct {
	ID          string         `db:"id"`
	Contact     string         `db:"contact"`
	Purpose     string         `db:"purpose"`
	UserID      sql.NullString `db:"user_id"`
	CodeHash    string         `db:"code_hash"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	CreatedAt   int64          `db:"created_at"`
	ExpiresAt   int64          `db:"expires_at"`
	VerifiedAt  sql.NullInt64  `db:"verified_at"`
}

func (r codeRow) toDomain() *domain.Code {
	return &domain.Code{
		ID:          r.ID,
		Contact:     r.Contact,
		Purpose:     domain.Purpose(r.Purpose),
		UserID:      r.UserID.String,
		CodeHash:    r.CodeHash,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		CreatedAt:   db.FromMillis(r.CreatedAt),
		ExpiresAt:   db.FromMillis(r.ExpiresAt),
		VerifiedAt:  db.TimePtr(r.VerifiedAt),
	}
}

// Issue marks prior codes consumed, then inserts. The two statements are not atomic.
func (r *SQLRepository) Issue(ctx context.Context, contact string, purpose domain.Purpose, userID string) (string, time.Time, error) {
	code, err := security.GenerateOTP()
	if err != nil {
		return "", time.Time{}, err
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	expiresAt := now.Add(r.expiry)

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE otp_codes SET verified_at = ?
		WHERE contact = ? AND purpose = ? AND verified_at IS NULL`),
		db.ToMillis(now), contact, string(purpose)); err != nil {
		return "", time.Time{}, err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO otp_codes
		(id, contact, purpose, user_id, code_hash, attempts, max_attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`),
		uuid.New().String(), contact, string(purpose), db.NullString(userID),
		security.HashOTP(code), r.maxAttempts, db.ToMillis(now), db.ToMillis(expiresAt))
	if err != nil {
		return "", time.Time{}, err
	}
	return code, expiresAt, nil
}

func (r *SQLRepository) Verify(ctx context.Context, contact, code string, purpose domain.Purpose) (string, error) {
	now := r.now()
	var row codeRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, contact, purpose, user_id, code_hash,
		attempts, max_attempts, created_at, expires_at, verified_at
		FROM otp_codes
		WHERE contact = ? AND purpose = ? AND verified_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1`),
		contact, string(purpose), db.ToMillis(now))
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrExpired
	}
	if err != nil {
		return "", err
	}
	c := row.toDomain()
	if c.Attempts >= c.MaxAttempts {
		return "", domain.ErrMaxAttempts
	}
	if !security.OTPEqual(code, c.CodeHash) {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE otp_codes SET attempts = attempts + 1 WHERE id = ?`), c.ID); err != nil {
			return "", err
		}
		return "", domain.ErrInvalid
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE otp_codes SET verified_at = ? WHERE id = ?`),
		db.ToMillis(now), c.ID); err != nil {
		return "", err
	}
	return c.UserID, nil
}

func (r *SQLRepository) CanResend(ctx context.Context, contact string, purpose domain.Purpose) (bool, time.Duration, error) {
	var last sql.NullInt64
	err := r.db.GetContext(ctx, &last, r.db.Rebind(`SELECT MAX(created_at) FROM otp_codes WHERE contact = ? AND purpose = ?`),
		contact, string(purpose))
	if err != nil {
		return false, 0, err
	}
	if !last.Valid {
		return true, 0, nil
	}
	elapsed := r.now().Sub(db.FromMillis(last.Int64))
	if elapsed >= domain.ResendCooldown {
		return true, 0, nil
	}
	return false, domain.ResendCooldown - elapsed, nil
}

var _ Repository = (*SQLRepository)(nil)
