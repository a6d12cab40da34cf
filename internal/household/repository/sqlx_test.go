package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db/testdb"
	"swadharma/backend/internal/household/domain"
)

func seedUser(t *testing.T, conn *sqlx.DB, id, name string) {
	t.Helper()
	conn.MustExec(`INSERT INTO users (id, email, password_hash, status, created_at, updated_at) VALUES (?, ?, 'x', 'ACTIVE', 0, 0)`,
		id, id+"@example.com")
	conn.MustExec(`INSERT INTO profiles (user_id, full_name, created_at, updated_at) VALUES (?, ?, 0, 0)`, id, name)
}

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	conn := testdb.New(t)
	for id, name := range map[string]string{"head": "Head", "adult": "Adult", "child": "Child", "other": "Other"} {
		seedUser(t, conn, id, name)
	}
	return NewSQLRepository(conn)
}

func memberRoles(h *domain.Household) map[string]domain.Role {
	out := make(map[string]domain.Role)
	for _, m := range h.Members {
		out[m.UserID] = m.Role
	}
	return out
}

func TestCreate_WithHeadAndAddress(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	lat := 17.385
	h, err := repo.Create(ctx, "head", "Sharma Parivar", &domain.Address{Line1: "1 Temple St", City: "Hyderabad", State: "TS", Pincode: "500001", Latitude: &lat})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.HeadUserID != "head" || h.Status != domain.StatusActive {
		t.Errorf("household = %+v", h)
	}
	if len(h.Members) != 1 || h.Members[0].Role != domain.RoleHead || h.Members[0].FullName != "Head" {
		t.Errorf("members = %+v", h.Members)
	}
	if len(h.Addresses) != 1 || !h.Addresses[0].IsPrimary || h.Addresses[0].Country != "IN" || *h.Addresses[0].Latitude != lat {
		t.Errorf("addresses = %+v", h.Addresses)
	}

	isHead, err := repo.IsUserHead(ctx, "head")
	if err != nil || !isHead {
		t.Errorf("IsUserHead = %v, %v", isHead, err)
	}
	if _, err := repo.Create(ctx, "head", "Second", nil); !errors.Is(err, ErrAlreadyHead) {
		t.Errorf("second Create err = %v, want ErrAlreadyHead", err)
	}

	mine, err := repo.GetByUserID(ctx, "head")
	if err != nil || mine == nil || mine.ID != h.ID {
		t.Errorf("GetByUserID = %v, %v", mine, err)
	}
	if none, err := repo.GetByUserID(ctx, "other"); none != nil || err != nil {
		t.Errorf("GetByUserID(non-member) = %v, %v", none, err)
	}
}

func TestTransferHead_Atomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	h, _ := repo.Create(ctx, "head", "H", nil)
	if err := repo.AddMember(ctx, h.ID, "adult", domain.RoleAdult, "head"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := repo.TransferHead(ctx, h.ID, "adult"); err != nil {
		t.Fatalf("TransferHead: %v", err)
	}
	got, _ := repo.GetByID(ctx, h.ID)
	roles := memberRoles(got)
	if got.HeadUserID != "adult" || roles["adult"] != domain.RoleHead || roles["head"] != domain.RoleAdult {
		t.Errorf("after transfer: head=%s roles=%v", got.HeadUserID, roles)
	}

	// A failed transfer leaves nothing half applied.
	if err := repo.TransferHead(ctx, h.ID, "other"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("transfer to non-member err = %v, want ErrNotMember", err)
	}
	got, _ = repo.GetByID(ctx, h.ID)
	roles = memberRoles(got)
	if got.HeadUserID != "adult" || roles["adult"] != domain.RoleHead || roles["head"] != domain.RoleAdult {
		t.Errorf("after failed transfer: head=%s roles=%v", got.HeadUserID, roles)
	}
}

func TestTransferHead_TargetHeadsAnotherHousehold(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	h, _ := repo.Create(ctx, "head", "H", nil)
	_, _ = repo.Create(ctx, "other", "O", nil)
	_ = repo.AddMember(ctx, h.ID, "other", domain.RoleAdult, "head")

	if err := repo.TransferHead(ctx, h.ID, "other"); !errors.Is(err, ErrAlreadyHead) {
		t.Fatalf("err = %v, want ErrAlreadyHead", err)
	}
	got, _ := repo.GetByID(ctx, h.ID)
	if got.HeadUserID != "head" || memberRoles(got)["head"] != domain.RoleHead {
		t.Errorf("household changed: head=%s roles=%v", got.HeadUserID, memberRoles(got))
	}
}

func TestRemoveMember_SoftDeleteAndRejoin(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	h, _ := repo.Create(ctx, "head", "H", nil)
	_ = repo.AddMember(ctx, h.ID, "child", domain.RoleChild, "head")
	if err := repo.RemoveMember(ctx, h.ID, "child", domain.StatusRemoved); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := repo.RemoveMember(ctx, h.ID, "child", domain.StatusRemoved); !errors.Is(err, ErrNotMember) {
		t.Errorf("second RemoveMember err = %v", err)
	}

	var status string
	if err := repo.db.Get(&status, `SELECT status FROM household_members WHERE household_id = ? AND user_id = ?`, h.ID, "child"); err != nil {
		t.Fatalf("row gone after removal: %v", err)
	}
	if status != string(domain.StatusRemoved) {
		t.Errorf("status = %s, want REMOVED", status)
	}

	if err := repo.AddMember(ctx, h.ID, "child", domain.RoleAdult, "head"); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	got, _ := repo.GetByID(ctx, h.ID)
	if memberRoles(got)["child"] != domain.RoleAdult {
		t.Errorf("rejoined roles = %v", memberRoles(got))
	}
}

func newInvite(householdID, token string, expiresAt time.Time) *domain.Invite {
	return &domain.Invite{
		ID:             uuid.New().String(),
		HouseholdID:    householdID,
		InviterID:      "head",
		InviteeContact: "b@x.com",
		Role:           domain.RoleAdult,
		Token:          token,
		Status:         domain.InvitePending,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now(),
	}
}

func TestAcceptInvite_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	h, _ := repo.Create(ctx, "head", "H", nil)
	if err := repo.CreateInvite(ctx, newInvite(h.ID, "tok-1", time.Now().Add(domain.InviteTTL))); err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	inv, err := repo.AcceptInvite(ctx, "tok-1", "adult")
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if inv.Status != domain.InviteAccepted || inv.InviteeUserID != "adult" || inv.RespondedAt == nil {
		t.Errorf("invite = %+v", inv)
	}
	got, _ := repo.GetByID(ctx, h.ID)
	if memberRoles(got)["adult"] != domain.RoleAdult {
		t.Errorf("members = %v", memberRoles(got))
	}

	if _, err := repo.AcceptInvite(ctx, "tok-1", "other"); !errors.Is(err, ErrInviteNotPending) {
		t.Errorf("second accept err = %v", err)
	}
	if err := repo.DeclineInvite(ctx, "tok-1"); !errors.Is(err, ErrInviteNotPending) {
		t.Errorf("decline after accept err = %v", err)
	}
}

func TestListPendingInvites_FiltersExpiredAndHandled(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	h, _ := repo.Create(ctx, "head", "H", nil)
	_ = repo.CreateInvite(ctx, newInvite(h.ID, "live", time.Now().Add(time.Hour)))
	_ = repo.CreateInvite(ctx, newInvite(h.ID, "lapsed", time.Now().Add(-time.Hour)))
	_ = repo.CreateInvite(ctx, newInvite(h.ID, "declined", time.Now().Add(time.Hour)))
	if err := repo.DeclineInvite(ctx, "declined"); err != nil {
		t.Fatalf("DeclineInvite: %v", err)
	}

	got, err := repo.ListPendingInvites(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListPendingInvites: %v", err)
	}
	if len(got) != 1 || got[0].Token != "live" {
		t.Errorf("pending = %+v", got)
	}

	lapsed, _ := repo.GetInviteByToken(ctx, "lapsed")
	if lapsed == nil || lapsed.Status != domain.InvitePending || !lapsed.Expired(time.Now()) {
		t.Errorf("lapsed invite = %+v", lapsed)
	}
	if missing, err := repo.GetInviteByToken(ctx, "nope"); missing != nil || err != nil {
		t.Errorf("GetInviteByToken(missing) = %v, %v", missing, err)
	}
}
