package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/security"
	"swadharma/backend/internal/user/domain"
)

// PasswordHasher hashes plaintext passwords for storage.
type PasswordHasher interface {
	HashPassword(plain string) (string, error)
}

// LockoutPolicy configures IncrementFailedAttempts.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// SQLRepository implements Repository on sqlx for Postgres and SQLite.
type SQLRepository struct {
	db      *sqlx.DB
	hasher  PasswordHasher
	lockout LockoutPolicy
	now     func() time.Time
}

// NewSQLRepository returns a Repository backed by conn.
func NewSQLRepository(conn *sqlx.DB, hasher PasswordHasher, lockout LockoutPolicy) *SQLRepository {
	if lockout.Threshold <= 0 {
		lockout.Threshold = 5
	}
	if lockout.Duration <= 0 {
		lockout.Duration = 15 * time.Minute
	}
	return &SQLRepository{db: conn, hasher: hasher, lockout: lockout, now: time.Now}
}

type userRow struct {
	ID                  string         `db:"id"`
	Email               sql.NullString `db:"email"`
	Phone               sql.NullString `db:"phone"`
	PasswordHash        string         `db:"password_hash"`
	Role                string         `db:"role"`
	Status              string         `db:"status"`
	EmailVerified       bool           `db:"email_verified"`
	PhoneVerified       bool           `db:"phone_verified"`
	FailedLoginAttempts int            `db:"failed_login_attempts"`
	LockedUntil         sql.NullInt64  `db:"locked_until"`
	LastLoginAt         sql.NullInt64  `db:"last_login_at"`
	PasswordChangedAt   sql.NullInt64  `db:"password_changed_at"`
	CreatedAt           int64          `db:"created_at"`
	UpdatedAt           int64          `db:"updated_at"`

	FullName           sql.NullString `db:"full_name"`
	DisplayName        sql.NullString `db:"display_name"`
	AvatarURL          sql.NullString `db:"avatar_url"`
	DateOfBirth        sql.NullString `db:"date_of_birth"`
	PlaceOfBirth       sql.NullString `db:"place_of_birth"`
	TimeOfBirth        sql.NullString `db:"time_of_birth"`
	Gotra              sql.NullString `db:"gotra"`
	Nakshatra          sql.NullString `db:"nakshatra"`
	Rashi              sql.NullString `db:"rashi"`
	LanguagePreference sql.NullString `db:"language_preference"`
	ProfileCreatedAt   sql.NullInt64  `db:"profile_created_at"`
	ProfileUpdatedAt   sql.NullInt64  `db:"profile_updated_at"`
}

const selectUser = `SELECT u.id, u.email, u.phone, u.password_hash, u.role, u.status,
	u.email_verified, u.phone_verified, u.failed_login_attempts, u.locked_until,
	u.last_login_at, u.password_changed_at, u.created_at, u.updated_at,
	p.full_name, p.display_name, p.avatar_url, p.date_of_birth, p.place_of_birth,
	p.time_of_birth, p.gotra, p.nakshatra, p.rashi, p.language_preference,
	p.created_at AS profile_created_at, p.updated_at AS profile_updated_at
FROM users u LEFT JOIN profiles p ON p.user_id = u.id`

func rowToDomain(r *userRow) *domain.User {
	u := &domain.User{
		ID:                  r.ID,
		Email:               r.Email.String,
		Phone:               r.Phone.String,
		PasswordHash:        r.PasswordHash,
		Role:                domain.Role(r.Role),
		Status:              domain.Status(r.Status),
		EmailVerified:       r.EmailVerified,
		PhoneVerified:       r.PhoneVerified,
		FailedLoginAttempts: r.FailedLoginAttempts,
		LockedUntil:         db.TimePtr(r.LockedUntil),
		LastLoginAt:         db.TimePtr(r.LastLoginAt),
		PasswordChangedAt:   db.TimePtr(r.PasswordChangedAt),
		CreatedAt:           db.FromMillis(r.CreatedAt),
		UpdatedAt:           db.FromMillis(r.UpdatedAt),
	}
	if r.ProfileCreatedAt.Valid {
		u.Profile = &domain.Profile{
			FullName:           r.FullName.String,
			DisplayName:        r.DisplayName.String,
			AvatarURL:          r.AvatarURL.String,
			DateOfBirth:        r.DateOfBirth.String,
			PlaceOfBirth:       r.PlaceOfBirth.String,
			TimeOfBirth:        r.TimeOfBirth.String,
			Gotra:              r.Gotra.String,
			Nakshatra:          r.Nakshatra.String,
			Rashi:              r.Rashi.String,
			LanguagePreference: r.LanguagePreference.String,
			CreatedAt:          db.FromMillis(r.ProfileCreatedAt.Int64),
			UpdatedAt:          db.FromMillis(r.ProfileUpdatedAt.Int64),
		}
	}
	return u
}

func (r *SQLRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectUser+" WHERE "+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rowToDomain(&row), nil
}

// Create hashes the password and inserts the account and its profile in one transaction.
func (r *SQLRepository) Create(ctx context.Context, in NewUser) (*domain.User, error) {
	hash, err := r.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         in.Role,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	p := in.Profile
	if p.LanguagePreference == "" {
		p.LanguagePreference = domain.DefaultLanguage
	}
	p.CreatedAt, p.UpdatedAt = now, now
	u.Profile = &p

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users
		(id, email, phone, password_hash, role, status, email_verified, phone_verified,
		 failed_login_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, FALSE, 0, ?, ?)`),
		u.ID, db.NullString(u.Email), db.NullString(u.Phone), u.PasswordHash,
		string(u.Role), string(u.Status), db.ToMillis(now), db.ToMillis(now))
	if err != nil {
		return nil, classifyDuplicate(err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO profiles
		(user_id, full_name, display_name, avatar_url, date_of_birth, place_of_birth,
		 time_of_birth, gotra, nakshatra, rashi, language_preference, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, p.FullName, p.DisplayName, p.AvatarURL, p.DateOfBirth, p.PlaceOfBirth,
		p.TimeOfBirth, p.Gotra, p.Nakshatra, p.Rashi, p.LanguagePreference,
		db.ToMillis(now), db.ToMillis(now))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func classifyDuplicate(err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "phone"):
		return ErrDuplicatePhone
	}
	return err
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "u.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *SQLRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, "u.phone = ?", strings.TrimSpace(phone))
}

func (r *SQLRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if security.ClassifyContact(identifier) == security.ChannelEmail {
		return r.GetByEmail(ctx, identifier)
	}
	return r.GetByPhone(ctx, identifier)
}

// IncrementFailedAttempts increments atomically, then applies the lock in the same transaction.
func (r *SQLRepository) IncrementFailedAttempts(ctx context.Context, id string) (Lockout, error) {
	now := r.now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Lockout{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = ? WHERE id = ?`),
		db.ToMillis(now), id)
	if err != nil {
		return Lockout{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Lockout{}, fmt.Errorf("user %s not found", id)
	}
	var out Lockout
	if err := tx.GetContext(ctx, &out.Attempts, tx.Rebind(`SELECT failed_login_attempts FROM users WHERE id = ?`), id); err != nil {
		return Lockout{}, err
	}
	if out.Attempts >= r.lockout.Threshold {
		until := now.Add(r.lockout.Duration)
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET locked_until = ? WHERE id = ?`),
			db.ToMillis(until), id); err != nil {
			return Lockout{}, err
		}
		out.LockedUntil = &until
	}
	return out, tx.Commit()
}

func (r *SQLRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	now := db.ToMillis(r.now())
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?`), now, now, id)
	return err
}

func (r *SQLRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.markVerified(ctx, id, "email_verified")
}

func (r *SQLRepository) MarkPhoneVerified(ctx context.Context, id string) error {
	return r.markVerified(ctx, id, "phone_verified")
}

func (r *SQLRepository) markVerified(ctx context.Context, id, column string) error {
	q := `UPDATE users SET ` + column + ` = TRUE,
		status = CASE WHEN status = 'PENDING' THEN 'ACTIVE' ELSE status END,
		updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), db.ToMillis(r.now()), id)
	return err
}

func (r *SQLRepository) UpdatePassword(ctx context.Context, id, newPassword string) error {
	hash, err := r.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := db.ToMillis(r.now())
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users
		SET password_hash = ?, password_changed_at = ?, updated_at = ? WHERE id = ?`),
		hash, now, now, id)
	return err
}

// UpdateProfile applies upd to the stored profile and returns the result. Returns nil, nil when
// the account has no profile.
func (r *SQLRepository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil || u == nil || u.Profile == nil {
		return nil, err
	}
	p := u.Profile
	upd.Apply(p)
	p.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`UPDATE profiles SET
		full_name = ?, display_name = ?, avatar_url = ?, date_of_birth = ?, place_of_birth = ?,
		time_of_birth = ?, gotra = ?, nakshatra = ?, rashi = ?, language_preference = ?, updated_at = ?
		WHERE user_id = ?`),
		p.FullName, p.DisplayName, p.AvatarURL, p.DateOfBirth, p.PlaceOfBirth,
		p.TimeOfBirth, p.Gotra, p.Nakshatra, p.Rashi, p.LanguagePreference,
		db.ToMillis(p.UpdatedAt), id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), db.ToMillis(r.now()), id)
	return err
}

func (r *SQLRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	var rows []userRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectUser+` WHERE u.role = ? AND u.status = ? ORDER BY u.created_at`),
		string(role), string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, rowToDomain(&rows[i]))
	}
	return out, nil
}

var _ Repository = (*SQLRepository)(nil)
