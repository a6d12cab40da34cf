package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"swadharma/backend/internal/db/testdb"
	"swadharma/backend/internal/otp/domain"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)} }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func wrongCode(code string) string {
	if code == "999999" {
		return "100000"
	}
	return "999999"
}

func newTestRepo(t *testing.T, c *clock) *SQLRepository {
	t.Helper()
	r := NewSQLRepository(testdb.New(t), 5*time.Minute, 3)
	r.now = c.now
	return r
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	repo := newTestRepo(t, c)

	code, expiresAt, err := repo.Issue(ctx, "a@x.com", domain.PurposeRegistration, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code = %q, want 6 digits", code)
	}
	if !expiresAt.Equal(c.t.Add(5 * time.Minute)) {
		t.Errorf("expiresAt = %v", expiresAt)
	}

	if _, err := repo.Verify(ctx, "a@x.com", code, domain.PurposeLogin); !errors.Is(err, domain.ErrExpired) {
		t.Errorf("verify with other purpose err = %v, want ErrExpired", err)
	}
	if _, err := repo.Verify(ctx, "a@x.com", code, domain.PurposeRegistration); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := repo.Verify(ctx, "a@x.com", code, domain.PurposeRegistration); !errors.Is(err, domain.ErrExpired) {
		t.Errorf("second verify err = %v, want ErrExpired (consumed)", err)
	}
}

func TestIssue_SupersedesPriorCode(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	repo := newTestRepo(t, c)

	first, _, _ := repo.Issue(ctx, "+919800000001", domain.PurposeLogin, "")
	c.advance(time.Second)
	second, _, err := repo.Issue(ctx, "+919800000001", domain.PurposeLogin, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var active int
	if err := repo.db.Get(&active, `SELECT COUNT(*) FROM otp_codes WHERE contact = ? AND purpose = ? AND verified_at IS NULL`,
		"+919800000001", "LOGIN"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if active != 1 {
		t.Errorf("unconsumed codes = %d, want 1", active)
	}
	if first != second {
		if _, err := repo.Verify(ctx, "+919800000001", first, domain.PurposeLogin); !errors.Is(err, domain.ErrInvalid) {
			t.Errorf("superseded code err = %v, want ErrInvalid", err)
		}
	}
	if _, err := repo.Verify(ctx, "+919800000001", second, domain.PurposeLogin); err != nil {
		t.Errorf("newest code: %v", err)
	}
}

func TestVerify_MaxAttemptsBlocksCorrectCode(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	repo := newTestRepo(t, c)

	code, _, _ := repo.Issue(ctx, "b@x.com", domain.PurposeLogin, "")
	for i := 0; i < 3; i++ {
		if _, err := repo.Verify(ctx, "b@x.com", wrongCode(code), domain.PurposeLogin); !errors.Is(err, domain.ErrInvalid) {
			t.Fatalf("wrong attempt %d err = %v, want ErrInvalid", i+1, err)
		}
	}
	if _, err := repo.Verify(ctx, "b@x.com", code, domain.PurposeLogin); !errors.Is(err, domain.ErrMaxAttempts) {
		t.Errorf("correct code after ceiling err = %v, want ErrMaxAttempts", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	repo := newTestRepo(t, c)

	code, _, _ := repo.Issue(ctx, "c@x.com", domain.PurposePasswordReset, "")
	c.advance(5*time.Minute + time.Millisecond)
	if _, err := repo.Verify(ctx, "c@x.com", code, domain.PurposePasswordReset); !errors.Is(err, domain.ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestCanResend_Cooldown(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	repo := newTestRepo(t, c)

	if ok, _, err := repo.CanResend(ctx, "d@x.com", domain.PurposeLogin); err != nil || !ok {
		t.Fatalf("CanResend before any issue = %v, %v", ok, err)
	}
	_, _, _ = repo.Issue(ctx, "d@x.com", domain.PurposeLogin, "")
	c.advance(10 * time.Second)
	ok, retry, err := repo.CanResend(ctx, "d@x.com", domain.PurposeLogin)
	if err != nil || ok {
		t.Fatalf("CanResend within cooldown = %v, %v", ok, err)
	}
	if retry != 20*time.Second {
		t.Errorf("retryAfter = %v, want 20s", retry)
	}
	if ok, _, _ := repo.CanResend(ctx, "d@x.com", domain.PurposeRegistration); !ok {
		t.Error("cooldown should be scoped to purpose")
	}
	c.advance(20 * time.Second)
	if ok, _, _ := repo.CanResend(ctx, "d@x.com", domain.PurposeLogin); !ok {
		t.Error("CanResend after cooldown should be allowed")
	}
}

func TestParsePurpose(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Purpose
		ok   bool
	}{
		{"registration", domain.PurposeRegistration, true},
		{"Login", domain.PurposeLogin, true},
		{"password_reset", domain.PurposePasswordReset, true},
		{"signup", "", false},
	}
	for _, tt := range tests {
		got, ok := domain.ParsePurpose(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePurpose(%q) = %q, %v", tt.in, got, ok)
		}
	}
}
