package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/db/testdb"
	notificationdomain "swadharma/backend/internal/notification/domain"
	"swadharma/backend/internal/security"
	"swadharma/backend/internal/servicerequest/domain"
	"swadharma/backend/internal/servicerequest/repository"
	userdomain "swadharma/backend/internal/user/domain"
	userrepo "swadharma/backend/internal/user/repository"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notificationdomain.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, batch ...*notificationdomain.Notification) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, batch...)
	return len(batch)
}

func (r *recordingNotifier) to(userID string) []*notificationdomain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notificationdomain.Notification
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type env struct {
	svc      *Service
	users    *userrepo.SQLRepository
	notifier *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := testdb.New(t)
	e := &env{
		users:    userrepo.NewSQLRepository(conn, security.NewHasher(4), userrepo.LockoutPolicy{}),
		notifier: &recordingNotifier{},
	}
	e.svc = NewService(repository.NewSQLRepository(conn), e.users, e.notifier, nil, nil)
	return e
}

func (e *env) account(t *testing.T, email, name string, role userdomain.Role, active bool) string {
	t.Helper()
	ctx := context.Background()
	u, err := e.users.Create(ctx, userrepo.NewUser{
		Email: email, Password: "Passw0rd", Role: role,
		Profile: userdomain.Profile{FullName: name, LanguagePreference: "en"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if active {
		if err := e.users.MarkEmailVerified(ctx, u.ID); err != nil {
			t.Fatalf("MarkEmailVerified: %v", err)
		}
	}
	return u.ID
}

func TestCreate_NotifiesActiveProviders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	member := e.account(t, "m@x.com", "Meera", userdomain.RoleMember, true)
	p1 := e.account(t, "p1@x.com", "Pandit One", userdomain.RoleProvider, true)
	p2 := e.account(t, "p2@x.com", "Pandit Two", userdomain.RoleProvider, true)
	pending := e.account(t, "p3@x.com", "Pending", userdomain.RoleProvider, false)

	req, err := e.svc.Create(ctx, member, CreateInput{ServiceType: "HomePooja", PreferredDate: "2026-06-01", Notes: "<b>north</b> facing"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != domain.StatusPending || req.Notes != "north facing" || req.ServiceLabel != "Home Pooja" {
		t.Errorf("request = %+v", req)
	}

	for _, p := range []string{p1, p2} {
		got := e.notifier.to(p)
		if len(got) != 1 || got[0].Type != notificationdomain.TypeServiceRequestNew || got[0].ReferenceID != req.ID {
			t.Fatalf("notifications for %s = %+v", p, got)
		}
		if got[0].Message != "Meera requested Home Pooja on 1 Jun 2026" {
			t.Errorf("message = %q", got[0].Message)
		}
	}
	if len(e.notifier.to(pending)) != 0 || len(e.notifier.to(member)) != 0 {
		t.Error("only active providers are notified")
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	member := e.account(t, "m@x.com", "Meera", userdomain.RoleMember, true)
	for name, in := range map[string]CreateInput{
		"unknown type": {ServiceType: "Astrology"},
		"bad date":     {ServiceType: "HomePooja", PreferredDate: "tomorrow"},
		"bad time":     {ServiceType: "HomePooja", PreferredTime: "25:00"},
		"long notes":   {ServiceType: "HomePooja", Notes: strings.Repeat("x", maxNoteLength+1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), member, in)
			if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestAcceptAndComplete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	member := e.account(t, "m@x.com", "Meera", userdomain.RoleMember, true)
	p1 := e.account(t, "p1@x.com", "Pandit One", userdomain.RoleProvider, true)
	p2 := e.account(t, "p2@x.com", "Pandit Two", userdomain.RoleProvider, true)
	req, err := e.svc.Create(ctx, member, CreateInput{ServiceType: "HomamYagam"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = e.svc.Accept(ctx, p1, "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("accept missing: %v", err)
	}
	_, err = e.svc.Complete(ctx, p1, req.ID)
	if !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("complete before accept: %v", err)
	}

	accepted, err := e.svc.Accept(ctx, p1, req.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.ProviderID != p1 || accepted.Status != domain.StatusAccepted {
		t.Errorf("accepted = %+v", accepted)
	}
	_, err = e.svc.Accept(ctx, p2, req.ID)
	if !apperr.IsCode(err, apperr.CodeAlreadyHandled) || apperr.As(err).Status() != 409 {
		t.Errorf("second accept: %v", err)
	}
	_, err = e.svc.Complete(ctx, p2, req.ID)
	if !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("complete by other provider: %v", err)
	}

	done, err := e.svc.Complete(ctx, p1, req.ID)
	if err != nil || done.Status != domain.StatusCompleted {
		t.Fatalf("Complete = %+v, %v", done, err)
	}
	_, err = e.svc.Complete(ctx, p1, req.ID)
	if !apperr.IsCode(err, apperr.CodeInvalidStatus) {
		t.Errorf("second complete: %v", err)
	}

	got := e.notifier.to(member)
	if len(got) != 2 {
		t.Fatalf("member notifications = %d", len(got))
	}
	if got[0].Type != notificationdomain.TypeServiceRequestAccepted || got[0].Message != "Pandit One accepted your Homam & Yagam request" {
		t.Errorf("accepted notification = %+v", got[0])
	}
	if got[1].Type != notificationdomain.TypeServiceRequestCompleted {
		t.Errorf("completed notification = %+v", got[1])
	}
}

func TestList_ByRole(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	m1 := e.account(t, "m1@x.com", "M1", userdomain.RoleMember, true)
	m2 := e.account(t, "m2@x.com", "M2", userdomain.RoleMember, true)
	p1 := e.account(t, "p1@x.com", "P1", userdomain.RoleProvider, true)
	p2 := e.account(t, "p2@x.com", "P2", userdomain.RoleProvider, true)

	a, _ := e.svc.Create(ctx, m1, CreateInput{ServiceType: "HomePooja"})
	b, _ := e.svc.Create(ctx, m2, CreateInput{ServiceType: "PoojaSamagri"})
	if _, err := e.svc.Accept(ctx, p2, b.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	own, err := e.svc.List(ctx, m1, userdomain.RoleMember)
	if err != nil || len(own) != 1 || own[0].ID != a.ID {
		t.Errorf("member list = %v, %v", own, err)
	}
	forP1, _ := e.svc.List(ctx, p1, userdomain.RoleProvider)
	if len(forP1) != 1 || forP1[0].ID != a.ID {
		t.Errorf("p1 sees %d requests", len(forP1))
	}
	forP2, _ := e.svc.List(ctx, p2, userdomain.RoleProvider)
	if len(forP2) != 2 {
		t.Errorf("p2 sees %d requests, want 2", len(forP2))
	}
}
