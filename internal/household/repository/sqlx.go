package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/household/domain"
)

// SQLRepository implements Repository on sqlx.
type SQLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLRepository returns a household store backed by conn.
func NewSQLRepository(conn *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: conn, now: time.Now}
}

type householdRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	HeadUserID string `db:"head_user_id"`
	Status     string `db:"status"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

type memberRow struct {
	ID          string         `db:"id"`
	HouseholdID string         `db:"household_id"`
	UserID      string         `db:"user_id"`
	Role        string         `db:"role"`
	Status      string         `db:"status"`
	InvitedBy   sql.NullString `db:"invited_by"`
	JoinedAt    int64          `db:"joined_at"`
	LeftAt      sql.NullInt64  `db:"left_at"`
	FullName    string         `db:"full_name"`
	DisplayName string         `db:"display_name"`
	AvatarURL   string         `db:"avatar_url"`
}

type addressRow struct {
	ID          string          `db:"id"`
	UserID      sql.NullString  `db:"user_id"`
	HouseholdID sql.NullString  `db:"household_id"`
	Type        string          `db:"type"`
	Label       string          `db:"label"`
	Line1       string          `db:"line1"`
	Line2       string          `db:"line2"`
	Landmark    string          `db:"landmark"`
	City        string          `db:"city"`
	State       string          `db:"state"`
	Pincode     string          `db:"pincode"`
	Country     string          `db:"country"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
	IsPrimary   bool            `db:"is_primary"`
	CreatedAt   int64           `db:"created_at"`
	UpdatedAt   int64           `db:"updated_at"`
}

type inviteRow struct {
	ID             string         `db:"id"`
	HouseholdID    string         `db:"household_id"`
	InviterID      string         `db:"inviter_id"`
	InviteeContact string         `db:"invitee_contact"`
	InviteeUserID  sql.NullString `db:"invitee_user_id"`
	Role           string         `db:"role"`
	Token          string         `db:"token"`
	Status         string         `db:"status"`
	ExpiresAt      int64          `db:"expires_at"`
	CreatedAt      int64          `db:"created_at"`
	RespondedAt    sql.NullInt64  `db:"responded_at"`
}

func (r *memberRow) toDomain() *domain.Member {
	return &domain.Member{
		ID:          r.ID,
		HouseholdID: r.HouseholdID,
		UserID:      r.UserID,
		Role:        domain.Role(r.Role),
		Status:      domain.Status(r.Status),
		InvitedBy:   r.InvitedBy.String,
		JoinedAt:    db.FromMillis(r.JoinedAt),
		LeftAt:      db.TimePtr(r.LeftAt),
		FullName:    r.FullName,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
	}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func (r *addressRow) toDomain() *domain.Address {
	return &domain.Address{
		ID:          r.ID,
		UserID:      r.UserID.String,
		HouseholdID: r.HouseholdID.String,
		Type:        domain.AddressType(r.Type),
		Label:       r.Label,
		Line1:       r.Line1,
		Line2:       r.Line2,
		Landmark:    r.Landmark,
		City:        r.City,
		State:       r.State,
		Pincode:     r.Pincode,
		Country:     r.Country,
		Latitude:    floatPtr(r.Latitude),
		Longitude:   floatPtr(r.Longitude),
		IsPrimary:   r.IsPrimary,
		CreatedAt:   db.FromMillis(r.CreatedAt),
		UpdatedAt:   db.FromMillis(r.UpdatedAt),
	}
}

func (r *inviteRow) toDomain() *domain.Invite {
	return &domain.Invite{
		ID:             r.ID,
		HouseholdID:    r.HouseholdID,
		InviterID:      r.InviterID,
		InviteeContact: r.InviteeContact,
		InviteeUserID:  r.InviteeUserID.String,
		Role:           domain.Role(r.Role),
		Token:          r.Token,
		Status:         domain.InviteStatus(r.Status),
		ExpiresAt:      db.FromMillis(r.ExpiresAt),
		CreatedAt:      db.FromMillis(r.CreatedAt),
		RespondedAt:    db.TimePtr(r.RespondedAt),
	}
}

func (r *SQLRepository) Create(ctx context.Context, headUserID, name string, addr *domain.Address) (*domain.Household, error) {
	now := db.ToMillis(r.now())
	id := uuid.New().String()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO households (id, name, head_user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, 'ACTIVE', ?, ?)`), id, name, headUserID, now, now); err != nil {
		return nil, headConflict(err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO household_members
		(id, household_id, user_id, role, status, joined_at) VALUES (?, ?, ?, 'HEAD', 'ACTIVE', ?)`),
		uuid.New().String(), id, headUserID, now); err != nil {
		return nil, headConflict(err)
	}
	if addr != nil {
		country := addr.Country
		if country == "" {
			country = "IN"
		}
		typ := addr.Type
		if typ == "" {
			typ = domain.AddressHome
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO addresses
			(id, household_id, type, label, line1, line2, landmark, city, state, pincode, country,
			 latitude, longitude, is_primary, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)`),
			uuid.New().String(), id, string(typ), addr.Label, addr.Line1, addr.Line2, addr.Landmark,
			addr.City, addr.State, addr.Pincode, country, nullFloat(addr.Latitude), nullFloat(addr.Longitude),
			now, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func headConflict(err error) error {
	if db.IsUniqueViolation(err) {
		return ErrAlreadyHead
	}
	return err
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Household, error) {
	var row householdRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, name, head_user_id, status, created_at, updated_at
		FROM households WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := &domain.Household{
		ID:         row.ID,
		Name:       row.Name,
		HeadUserID: row.HeadUserID,
		Status:     domain.Status(row.Status),
		CreatedAt:  db.FromMillis(row.CreatedAt),
		UpdatedAt:  db.FromMillis(row.UpdatedAt),
	}

	var members []memberRow
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(`SELECT m.id, m.household_id, m.user_id, m.role,
		m.status, m.invited_by, m.joined_at, m.left_at,
		COALESCE(p.full_name, '') AS full_name, COALESCE(p.display_name, '') AS display_name,
		COALESCE(p.avatar_url, '') AS avatar_url
		FROM household_members m LEFT JOIN profiles p ON p.user_id = m.user_id
		WHERE m.household_id = ? AND m.status = 'ACTIVE'
		ORDER BY m.joined_at, m.id`), id); err != nil {
		return nil, err
	}
	h.Members = make([]*domain.Member, len(members))
	for i := range members {
		h.Members[i] = members[i].toDomain()
	}

	var addrs []addressRow
	if err := r.db.SelectContext(ctx, &addrs, r.db.Rebind(`SELECT id, user_id, household_id, type, label, line1,
		line2, landmark, city, state, pincode, country, latitude, longitude, is_primary, created_at, updated_at
		FROM addresses WHERE household_id = ? ORDER BY is_primary DESC, created_at`), id); err != nil {
		return nil, err
	}
	h.Addresses = make([]*domain.Address, len(addrs))
	for i := range addrs {
		h.Addresses[i] = addrs[i].toDomain()
	}
	return h, nil
}

func (r *SQLRepository) GetByUserID(ctx context.Context, userID string) (*domain.Household, error) {
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`SELECT household_id FROM household_members
		WHERE user_id = ? AND status = 'ACTIVE' ORDER BY joined_at LIMIT 1`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *SQLRepository) IsUserHead(ctx context.Context, userID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM households
		WHERE head_user_id = ? AND status = 'ACTIVE'`), userID)
	return n > 0, err
}

func (r *SQLRepository) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE households SET name = ?, updated_at = ? WHERE id = ?`),
		name, db.ToMillis(r.now()), id)
	return err
}

func (r *SQLRepository) AddMember(ctx context.Context, householdID, userID string, role domain.Role, invitedBy string) error {
	return r.addMember(ctx, r.db, householdID, userID, role, invitedBy)
}

// addMember reactivates a previous membership row when one exists; (household, user) is unique.
func (r *SQLRepository) addMember(ctx context.Context, q sqlx.ExtContext, householdID, userID string, role domain.Role, invitedBy string) error {
	now := db.ToMillis(r.now())
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE household_members
		SET role = ?, status = 'ACTIVE', invited_by = ?, joined_at = ?, left_at = NULL
		WHERE household_id = ? AND user_id = ?`),
		string(role), db.NullString(invitedBy), now, householdID, userID)
	if err != nil {
		return headConflict(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, q.Rebind(`INSERT INTO household_members
		(id, household_id, user_id, role, status, invited_by, joined_at) VALUES (?, ?, ?, ?, 'ACTIVE', ?, ?)`),
		uuid.New().String(), householdID, userID, string(role), db.NullString(invitedBy), now)
	return headConflict(err)
}

func (r *SQLRepository) UpdateMemberRole(ctx context.Context, householdID, userID string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE household_members SET role = ?
		WHERE household_id = ? AND user_id = ? AND status = 'ACTIVE'`), string(role), householdID, userID)
	if err != nil {
		return headConflict(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return nil
}

func (r *SQLRepository) RemoveMember(ctx context.Context, householdID, userID string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE household_members SET status = ?, left_at = ?
		WHERE household_id = ? AND user_id = ? AND status = 'ACTIVE'`),
		string(status), db.ToMillis(r.now()), householdID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return nil
}

// TransferHead demotes before promoting so the one-head index holds after every statement.
func (r *SQLRepository) TransferHead(ctx context.Context, householdID, newHeadID string) error {
	now := db.ToMillis(r.now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE households SET head_user_id = ?, updated_at = ? WHERE id = ?`),
		newHeadID, now, householdID); err != nil {
		return headConflict(err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE household_members SET role = 'ADULT'
		WHERE household_id = ? AND role = 'HEAD' AND status = 'ACTIVE'`), householdID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE household_members SET role = 'HEAD'
		WHERE household_id = ? AND user_id = ? AND status = 'ACTIVE'`), householdID, newHeadID)
	if err != nil {
		return headConflict(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return tx.Commit()
}

const inviteColumns = `id, household_id, inviter_id, invitee_contact, invitee_user_id, role, token, status,
	expires_at, created_at, responded_at`

func (r *SQLRepository) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO household_invites (`+inviteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`),
		inv.ID, inv.HouseholdID, inv.InviterID, inv.InviteeContact, db.NullString(inv.InviteeUserID),
		string(inv.Role), inv.Token, string(inv.Status), db.ToMillis(inv.ExpiresAt), db.ToMillis(inv.CreatedAt))
	return err
}

func (r *SQLRepository) GetInviteByToken(ctx context.Context, token string) (*domain.Invite, error) {
	return getInvite(ctx, r.db, token)
}

func getInvite(ctx context.Context, q sqlx.ExtContext, token string) (*domain.Invite, error) {
	var row inviteRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+inviteColumns+` FROM household_invites WHERE token = ?`), token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// AcceptInvite flips the invite with a conditional update so only one accept can win.
func (r *SQLRepository) AcceptInvite(ctx context.Context, token, userID string) (*domain.Invite, error) {
	now := db.ToMillis(r.now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE household_invites
		SET status = 'ACCEPTED', invitee_user_id = ?, responded_at = ?
		WHERE token = ? AND status = 'PENDING'`), userID, now, token)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrInviteNotPending
	}
	inv, err := getInvite(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	if err := r.addMember(ctx, tx, inv.HouseholdID, userID, inv.Role, inv.InviterID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *SQLRepository) DeclineInvite(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE household_invites SET status = 'DECLINED', responded_at = ?
		WHERE token = ? AND status = 'PENDING'`), db.ToMillis(r.now()), token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInviteNotPending
	}
	return nil
}

func (r *SQLRepository) ListPendingInvites(ctx context.Context, householdID string) ([]*domain.Invite, error) {
	var rows []inviteRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+inviteColumns+` FROM household_invites
		WHERE household_id = ? AND status = 'PENDING' AND expires_at > ? ORDER BY created_at DESC`),
		householdID, db.ToMillis(r.now()))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Invite, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

var _ Repository = (*SQLRepository)(nil)
