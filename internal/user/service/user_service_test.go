package service

import (
	"context"
	"testing"
	"time"

	"swadharma/backend/internal/apperr"
	auditdomain "swadharma/backend/internal/audit/domain"
	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/db/testdb"
	householddomain "swadharma/backend/internal/household/domain"
	householdrepo "swadharma/backend/internal/household/repository"
	"swadharma/backend/internal/security"
	sessiondomain "swadharma/backend/internal/session/domain"
	sessionrepo "swadharma/backend/internal/session/repository"
	"swadharma/backend/internal/user/domain"
	userrepo "swadharma/backend/internal/user/repository"
)

type env struct {
	svc        *UserService
	users      *userrepo.SQLRepository
	households *householdrepo.SQLRepository
	sessions   *sessionrepo.SQLRepository
	audit      *auditrepo.SQLRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := testdb.New(t)
	e := &env{
		users:      userrepo.NewSQLRepository(conn, security.NewHasher(4), userrepo.LockoutPolicy{}),
		households: householdrepo.NewSQLRepository(conn),
		sessions:   sessionrepo.NewSQLRepository(conn, 30*24*time.Hour),
		audit:      auditrepo.NewSQLRepository(conn),
	}
	e.svc = NewUserService(e.users, e.households, e.sessions, e.audit, nil)
	return e
}

func (e *env) user(t *testing.T, email, name string) string {
	t.Helper()
	u, err := e.users.Create(context.Background(), userrepo.NewUser{
		Email: email, Password: "Passw0rd", Role: domain.RoleMember,
		Profile: domain.Profile{FullName: name, LanguagePreference: "en"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return u.ID
}

func str(s string) *string { return &s }

func TestMe(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	id := e.user(t, "me@x.com", "")

	me, err := e.svc.Me(ctx, id)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Email == nil || *me.Email != "me@x.com" || me.Phone != nil {
		t.Errorf("contacts = %v, %v", me.Email, me.Phone)
	}
	if me.Profile == nil || me.Profile.IsComplete || me.Household != nil {
		t.Errorf("me = %+v", me)
	}

	other := e.user(t, "o@x.com", "Other")
	h, err := e.households.Create(ctx, id, "Sharma Parivar", nil)
	if err != nil {
		t.Fatalf("Create household: %v", err)
	}
	if err := e.households.AddMember(ctx, h.ID, other, householddomain.RoleAdult, id); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	me, err = e.svc.Me(ctx, other)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	want := HouseholdSummary{ID: h.ID, Name: "Sharma Parivar", Role: householddomain.RoleAdult, MemberCount: 2}
	if me.Household == nil || *me.Household != want {
		t.Errorf("household = %+v, want %+v", me.Household, want)
	}
	if !me.Profile.IsComplete {
		t.Error("profile with a full name is complete")
	}

	_, err = e.svc.Me(ctx, "missing")
	if !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	id := e.user(t, "p@x.com", "")

	got, err := e.svc.UpdateProfile(ctx, id, domain.ProfileUpdate{
		FullName:           str(" <script>x</script>Ravi Kumar "),
		Gotra:              str("Bharadwaj"),
		DateOfBirth:        str("1990-02-14"),
		LanguagePreference: str("TE"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FullName != "Ravi Kumar" || got.Gotra != "Bharadwaj" || got.LanguagePreference != "te" || !got.IsComplete {
		t.Errorf("profile = %+v", got)
	}

	u, _ := e.users.GetByID(ctx, id)
	if u.Profile.DateOfBirth != "1990-02-14" {
		t.Errorf("stored dob = %q", u.Profile.DateOfBirth)
	}
}

func TestUpdateProfile_Validation(t *testing.T) {
	e := newEnv(t)
	id := e.user(t, "v@x.com", "V")
	tests := []struct {
		name string
		upd  domain.ProfileUpdate
	}{
		{"empty full name", domain.ProfileUpdate{FullName: str("  ")}},
		{"bad date", domain.ProfileUpdate{DateOfBirth: str("14/02/1990")}},
		{"bad time", domain.ProfileUpdate{TimeOfBirth: str("7pm")}},
		{"bad language", domain.ProfileUpdate{LanguagePreference: str("fr")}},
		{"bad avatar", domain.ProfileUpdate{AvatarURL: str("javascript:alert(1)")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.UpdateProfile(context.Background(), id, tt.upd)
			if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Errorf("err = %v, want VALIDATION_ERROR", err)
			}
		})
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	id := e.user(t, "s@x.com", "S")
	other := e.user(t, "t@x.com", "T")

	phone, err := e.sessions.Store(ctx, id, "raw-phone", sessiondomain.DeviceInfo{UserAgent: "phone"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := e.sessions.Store(ctx, id, "raw-laptop", sessiondomain.DeviceInfo{UserAgent: "laptop"}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	foreign, err := e.sessions.Store(ctx, other, "raw-other", sessiondomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	list, err := e.svc.ListSessions(ctx, id)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListSessions = %d, %v", len(list), err)
	}

	if err := e.svc.RevokeSession(ctx, id, foreign.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("revoking another account's session: %v", err)
	}
	if err := e.svc.RevokeSession(ctx, id, phone.ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := e.svc.RevokeSession(ctx, id, phone.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("second revoke: %v", err)
	}
	list, _ = e.svc.ListSessions(ctx, id)
	if len(list) != 1 || list[0].Device.UserAgent != "laptop" {
		t.Errorf("remaining = %+v", list)
	}
}

func TestListActivity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	id := e.user(t, "a@x.com", "A")
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, action := range []string{"register", "login_success"} {
		if err := e.audit.Create(ctx, &auditdomain.AuditLog{
			ID: action, UserID: id, Action: action, Resource: "auth", IP: "10.0.0.1",
			Metadata: `{"n":1}`, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("audit Create: %v", err)
		}
	}

	got, err := e.svc.ListActivity(ctx, id, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(got) != 2 || got[0].Action != "login_success" || string(got[0].Metadata) != `{"n":1}` {
		t.Errorf("activity = %+v", got)
	}
}
