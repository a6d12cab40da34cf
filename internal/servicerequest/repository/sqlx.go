package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/servicerequest/domain"
)

// SQLRepository implements Repository over the service_requests table.
type SQLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLRepository returns a Repository backed by conn.
func NewSQLRepository(conn *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: conn, now: time.Now}
}

type requestRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	MemberName    string         `db:"member_name"`
	ProviderID    sql.NullString `db:"provider_id"`
	ProviderName  string         `db:"provider_name"`
	ServiceType   string         `db:"service_type"`
	Status        string         `db:"status"`
	PreferredDate string         `db:"preferred_date"`
	PreferredTime string         `db:"preferred_time"`
	Location      string         `db:"location"`
	Notes         string         `db:"notes"`
	CreatedAt     int64          `db:"created_at"`
	UpdatedAt     int64          `db:"updated_at"`
	AcceptedAt    sql.NullInt64  `db:"accepted_at"`
	CompletedAt   sql.NullInt64  `db:"completed_at"`
}

func (r *requestRow) toDomain() *domain.Request {
	t := domain.ServiceType(r.ServiceType)
	return &domain.Request{
		ID:            r.ID,
		MemberID:      r.UserID,
		MemberName:    r.MemberName,
		ProviderID:    r.ProviderID.String,
		ProviderName:  r.ProviderName,
		ServiceType:   t,
		ServiceLabel:  t.Label(),
		Status:        domain.Status(r.Status),
		PreferredDate: r.PreferredDate,
		PreferredTime: r.PreferredTime,
		Location:      r.Location,
		Notes:         r.Notes,
		CreatedAt:     db.FromMillis(r.CreatedAt),
		UpdatedAt:     db.FromMillis(r.UpdatedAt),
		AcceptedAt:    db.TimePtr(r.AcceptedAt),
		CompletedAt:   db.TimePtr(r.CompletedAt),
	}
}

// selectRequest joins member and provider display names.
const selectRequest = `SELECT r.id, r.user_id, COALESCE(mp.full_name, '') AS member_name,
	r.provider_id, COALESCE(pp.full_name, '') AS provider_name, r.service_type, r.status,
	r.preferred_date, r.preferred_time, r.location, r.notes, r.created_at, r.updated_at,
	r.accepted_at, r.completed_at
	FROM service_requests r
	LEFT JOIN profiles mp ON mp.user_id = r.user_id
	LEFT JOIN profiles pp ON pp.user_id = r.provider_id`

func (r *SQLRepository) Create(ctx context.Context, req *domain.Request) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	req.ID = uuid.New().String()
	req.Status = domain.StatusPending
	req.ServiceLabel = req.ServiceType.Label()
	req.CreatedAt, req.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO service_requests
		(id, user_id, service_type, status, preferred_date, preferred_time, location, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		req.ID, req.MemberID, string(req.ServiceType), string(req.Status), req.PreferredDate, req.PreferredTime,
		req.Location, req.Notes, db.ToMillis(now), db.ToMillis(now))
	return err
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	var row requestRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectRequest+` WHERE r.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *SQLRepository) list(ctx context.Context, where string, args ...any) ([]*domain.Request, error) {
	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectRequest+` WHERE `+where+` ORDER BY r.created_at DESC, r.id`), args...); err != nil {
		return nil, err
	}
	out := make([]*domain.Request, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (r *SQLRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Request, error) {
	return r.list(ctx, `r.user_id = ?`, memberID)
}

func (r *SQLRepository) ListForProvider(ctx context.Context, providerID string) ([]*domain.Request, error) {
	return r.list(ctx, `(r.status = ? OR r.provider_id = ?)`, string(domain.StatusPending), providerID)
}

// Accept is a conditional update, so of two racing providers exactly one wins.
func (r *SQLRepository) Accept(ctx context.Context, id, providerID string) (*domain.Request, error) {
	now := db.ToMillis(r.now())
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE service_requests
		SET status = ?, provider_id = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(domain.StatusAccepted), providerID, now, now, id, string(domain.StatusPending))
	return r.afterTransition(ctx, id, res, err)
}

func (r *SQLRepository) Complete(ctx context.Context, id, providerID string) (*domain.Request, error) {
	now := db.ToMillis(r.now())
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE service_requests
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND provider_id = ? AND status = ?`),
		string(domain.StatusCompleted), now, now, id, providerID, string(domain.StatusAccepted))
	return r.afterTransition(ctx, id, res, err)
}

func (r *SQLRepository) afterTransition(ctx context.Context, id string, res sql.Result, err error) (*domain.Request, error) {
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrStateChanged
	}
	return r.GetByID(ctx, id)
}

var _ Repository = (*SQLRepository)(nil)
