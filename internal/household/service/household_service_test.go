package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/db/testdb"
	"swadharma/backend/internal/household/domain"
	"swadharma/backend/internal/household/repository"
	"swadharma/backend/internal/policy/engine"
	"swadharma/backend/internal/security"
	userdomain "swadharma/backend/internal/user/domain"
	userrepo "swadharma/backend/internal/user/repository"
)

type env struct {
	svc   *HouseholdService
	repo  *repository.SQLRepository
	users *userrepo.SQLRepository
	conn  *sqlx.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	conn := testdb.New(t)
	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	e := &env{
		repo:  repository.NewSQLRepository(conn),
		users: userrepo.NewSQLRepository(conn, security.NewHasher(4), userrepo.LockoutPolicy{}),
		conn:  conn,
	}
	e.svc = NewHouseholdService(e.repo, e.users, policy, nil, nil, "https://app.example.com/")
	return e
}

func (e *env) user(t *testing.T, email, name string) string {
	t.Helper()
	u, err := e.users.Create(context.Background(), userrepo.NewUser{
		Email: email, Password: "Passw0rd", Role: "MEMBER",
		Profile: userdomain.Profile{FullName: name, LanguagePreference: "en"},
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

// household creates a household headed by head with the given adult and child members.
func (e *env) household(t *testing.T, head string, adults, children []string) *domain.Household {
	t.Helper()
	ctx := context.Background()
	h, err := e.svc.Create(ctx, head, CreateInput{Name: "Sharma Parivar"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, id := range adults {
		if err := e.repo.AddMember(ctx, h.ID, id, domain.RoleAdult, head); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	for _, id := range children {
		if err := e.repo.AddMember(ctx, h.ID, id, domain.RoleChild, head); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	return h
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if !apperr.IsCode(err, code) {
		t.Fatalf("err = %v, want %s", err, code)
	}
}

func roles(h *domain.Household) map[string]domain.Role {
	out := make(map[string]domain.Role, len(h.Members))
	for _, m := range h.Members {
		out[m.UserID] = m.Role
	}
	return out
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")

	h, err := e.svc.Create(ctx, head, CreateInput{
		Name:    "  <i>Sharma</i> Parivar ",
		Address: &AddressInput{Type: "temple", Line1: "1 Temple St", City: "Hyderabad", State: "TS", Pincode: "500001"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.Name != "Sharma Parivar" || h.HeadUserID != head {
		t.Errorf("household = %+v", h)
	}
	if len(h.Addresses) != 1 || h.Addresses[0].Type != domain.AddressTemple || !h.Addresses[0].IsPrimary {
		t.Errorf("addresses = %+v", h.Addresses)
	}

	_, err = e.svc.Create(ctx, head, CreateInput{Name: "Second"})
	wantCode(t, err, apperr.CodeAlreadyHead)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"empty name", CreateInput{Name: "   "}},
		{"bad address type", CreateInput{Name: "H", Address: &AddressInput{Type: "castle", Line1: "a", City: "b", State: "c", Pincode: "1"}}},
		{"incomplete address", CreateInput{Name: "H", Address: &AddressInput{Line1: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), head, tt.in)
			wantCode(t, err, apperr.CodeValidation)
		})
	}
}

func TestGet_MembersOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	outsider := e.user(t, "out@x.com", "Out")
	h := e.household(t, head, []string{adult}, nil)

	if _, err := e.svc.Get(ctx, adult, h.ID); err != nil {
		t.Errorf("member Get: %v", err)
	}
	_, err := e.svc.Get(ctx, outsider, h.ID)
	wantCode(t, err, apperr.CodeAccessDenied)
	_, err = e.svc.Get(ctx, head, "missing")
	wantCode(t, err, apperr.CodeHouseholdNotFound)
}

func TestUpdateName_HeadOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	h := e.household(t, head, []string{adult}, nil)

	_, err := e.svc.UpdateName(ctx, adult, h.ID, "Mine")
	wantCode(t, err, apperr.CodeAccessDenied)

	got, err := e.svc.UpdateName(ctx, head, h.ID, "Verma Parivar")
	if err != nil || got.Name != "Verma Parivar" {
		t.Fatalf("UpdateName = %+v, %v", got, err)
	}
}

func TestInviteLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head Person")
	h := e.household(t, head, nil, nil)
	fixed := time.Now().UTC().Truncate(time.Second)
	e.svc.now = func() time.Time { return fixed }

	inv, err := e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "B@x.com", Role: "adult"})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.Status != domain.InvitePending || inv.Role != domain.RoleAdult || inv.InviteeContact != "b@x.com" {
		t.Errorf("invite = %+v", inv.Invite)
	}
	if !inv.ExpiresAt.Equal(fixed.Add(7 * 24 * time.Hour)) {
		t.Errorf("expiresAt = %v", inv.ExpiresAt)
	}
	if inv.InviteLink != "https://app.example.com/invite/"+inv.Token || len(inv.Token) != 64 {
		t.Errorf("link = %q", inv.InviteLink)
	}

	details, err := e.svc.GetInvite(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetInvite: %v", err)
	}
	if details.HouseholdName != "Sharma Parivar" || details.InviterName != "Head Person" || details.Status != domain.InvitePending {
		t.Errorf("details = %+v", details)
	}

	b := e.user(t, "b@x.com", "B")
	joined, err := e.svc.AcceptInvite(ctx, b, inv.Token)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if roles(joined)[b] != domain.RoleAdult {
		t.Errorf("members = %v", roles(joined))
	}
	stored, _ := e.repo.GetInviteByToken(ctx, inv.Token)
	if stored.Status != domain.InviteAccepted {
		t.Errorf("invite status = %s", stored.Status)
	}

	other := e.user(t, "c@x.com", "C")
	_, err = e.svc.AcceptInvite(ctx, other, inv.Token)
	wantCode(t, err, apperr.CodeInviteAlreadyUsed)
}

func TestAcceptInvite_ContactNotMatched(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	h := e.household(t, head, nil, nil)
	inv, err := e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "intended@x.com", Role: "CHILD"})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	stranger := e.user(t, "stranger@x.com", "Stranger")
	joined, err := e.svc.AcceptInvite(ctx, stranger, inv.Token)
	if err != nil {
		t.Fatalf("token holder should be able to accept: %v", err)
	}
	if roles(joined)[stranger] != domain.RoleChild {
		t.Errorf("members = %v", roles(joined))
	}
}

func TestInvite_Rules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	h := e.household(t, head, []string{adult}, nil)

	_, err := e.svc.Invite(ctx, adult, h.ID, InviteInput{Contact: "n@x.com", Role: "ADULT"})
	wantCode(t, err, apperr.CodeAccessDenied)

	_, err = e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "n@x.com", Role: "HEAD"})
	wantCode(t, err, apperr.CodeInvalidRole)

	_, err = e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "ADULT@x.com", Role: "ADULT"})
	wantCode(t, err, apperr.CodeAlreadyMember)

	_, err = e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: " ", Role: "ADULT"})
	wantCode(t, err, apperr.CodeValidation)

	known := e.user(t, "known@x.com", "Known")
	inv, err := e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "known@x.com", Role: "ADULT"})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.InviteeUserID != known {
		t.Errorf("inviteeUserId = %q, want %q", inv.InviteeUserID, known)
	}

	list, err := e.svc.ListInvites(ctx, adult, h.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("ListInvites = %d, %v", len(list), err)
	}
}

func TestAcceptAndDecline_ExpiredOrUnknown(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	joiner := e.user(t, "j@x.com", "J")
	h := e.household(t, head, nil, nil)

	inv, err := e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "j@x.com", Role: "ADULT"})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	e.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = e.svc.AcceptInvite(ctx, joiner, inv.Token)
	wantCode(t, err, apperr.CodeInviteExpired)
	err = e.svc.DeclineInvite(ctx, joiner, inv.Token)
	wantCode(t, err, apperr.CodeInviteExpired)

	details, err := e.svc.GetInvite(ctx, inv.Token)
	if err != nil || details.Status != domain.InviteExpired {
		t.Errorf("GetInvite = %+v, %v", details, err)
	}

	_, err = e.svc.AcceptInvite(ctx, joiner, "nope")
	wantCode(t, err, apperr.CodeInviteNotFound)
	_, err = e.svc.GetInvite(ctx, "nope")
	wantCode(t, err, apperr.CodeInviteNotFound)
}

func TestDeclineInvite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	joiner := e.user(t, "j@x.com", "J")
	h := e.household(t, head, nil, nil)
	inv, err := e.svc.Invite(ctx, head, h.ID, InviteInput{Contact: "j@x.com", Role: "ADULT"})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if err := e.svc.DeclineInvite(ctx, joiner, inv.Token); err != nil {
		t.Fatalf("DeclineInvite: %v", err)
	}
	wantCode(t, e.svc.DeclineInvite(ctx, joiner, inv.Token), apperr.CodeInviteAlreadyUsed)
	_, err = e.svc.AcceptInvite(ctx, joiner, inv.Token)
	wantCode(t, err, apperr.CodeInviteAlreadyUsed)
}

func TestUpdateMemberRole(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	outsider := e.user(t, "out@x.com", "Out")
	h := e.household(t, head, []string{adult}, nil)

	tests := []struct {
		name           string
		caller, target string
		role           string
		want           apperr.Code
	}{
		{"not head", adult, adult, "CHILD", apperr.CodeAccessDenied},
		{"promote to head", head, adult, "HEAD", apperr.CodeUseTransfer},
		{"unknown role", head, adult, "ELDER", apperr.CodeInvalidRole},
		{"non member", head, outsider, "CHILD", apperr.CodeNotAMember},
		{"demote head", head, head, "ADULT", apperr.CodeUseTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, e.svc.UpdateMemberRole(ctx, tt.caller, h.ID, tt.target, tt.role), tt.want)
		})
	}

	if err := e.svc.UpdateMemberRole(ctx, head, h.ID, adult, "child"); err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	got, _ := e.repo.GetByID(ctx, h.ID)
	if roles(got)[adult] != domain.RoleChild {
		t.Errorf("roles = %v", roles(got))
	}
}

func TestRemoveMemberAndLeave_SelfGuards(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	child := e.user(t, "child@x.com", "Child")
	h := e.household(t, head, []string{adult}, []string{child})

	wantCode(t, e.svc.RemoveMember(ctx, head, h.ID, head), apperr.CodeCannotRemoveSelf)
	wantCode(t, e.svc.Leave(ctx, head, h.ID), apperr.CodeHeadCannotLeave)
	wantCode(t, e.svc.RemoveMember(ctx, adult, h.ID, child), apperr.CodeAccessDenied)

	if err := e.svc.RemoveMember(ctx, head, h.ID, child); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := e.svc.Leave(ctx, adult, h.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	got, _ := e.repo.GetByID(ctx, h.ID)
	if len(got.Members) != 1 || got.Members[0].UserID != head {
		t.Errorf("members = %v", roles(got))
	}

	var status string
	if err := e.conn.Get(&status, `SELECT status FROM household_members WHERE user_id = ?`, adult); err != nil || status != "LEFT" {
		t.Errorf("adult membership status = %q, %v", status, err)
	}
	wantCode(t, e.svc.Leave(ctx, adult, h.ID), apperr.CodeNotAMember)
}

func TestTransferHead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	adult := e.user(t, "adult@x.com", "Adult")
	child := e.user(t, "child@x.com", "Child")
	outsider := e.user(t, "out@x.com", "Out")
	h := e.household(t, head, []string{adult}, []string{child})

	wantCode(t, e.svc.TransferHead(ctx, adult, h.ID, adult), apperr.CodeAccessDenied)
	wantCode(t, e.svc.TransferHead(ctx, head, h.ID, child), apperr.CodeCannotBeHead)
	wantCode(t, e.svc.TransferHead(ctx, head, h.ID, outsider), apperr.CodeNotAMember)

	if err := e.svc.TransferHead(ctx, head, h.ID, adult); err != nil {
		t.Fatalf("TransferHead: %v", err)
	}
	got, _ := e.repo.GetByID(ctx, h.ID)
	r := roles(got)
	if got.HeadUserID != adult || r[adult] != domain.RoleHead || r[head] != domain.RoleAdult {
		t.Errorf("after transfer head=%s roles=%v", got.HeadUserID, r)
	}

	if err := e.svc.Leave(ctx, head, h.ID); err != nil {
		t.Errorf("former head should be able to leave: %v", err)
	}
}

func TestTransferHead_TargetHeadsAnotherHousehold(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	head := e.user(t, "head@x.com", "Head")
	other := e.user(t, "other@x.com", "Other")
	h := e.household(t, head, []string{other}, nil)
	e.household(t, other, nil, nil)

	wantCode(t, e.svc.TransferHead(ctx, head, h.ID, other), apperr.CodeAlreadyHead)
}
