// Package service implements the signed-in account's own views: profile, sessions and activity.
package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"swadharma/backend/internal/apperr"
	auditdomain "swadharma/backend/internal/audit/domain"
	householddomain "swadharma/backend/internal/household/domain"
	"swadharma/backend/internal/platform/sanitize"
	sessiondomain "swadharma/backend/internal/session/domain"
	"swadharma/backend/internal/telemetry"
	eventdomain "swadharma/backend/internal/telemetry/domain"
	"swadharma/backend/internal/user/domain"
)

// Profiles reads accounts and writes profiles.
type Profiles interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
}

// Households finds the household an account belongs to.
type Households interface {
	GetByUserID(ctx context.Context, userID string) (*householddomain.Household, error)
}

// Sessions lists and revokes refresh-token sessions.
type Sessions interface {
	ListActive(ctx context.Context, userID string) ([]*sessiondomain.RefreshToken, error)
	RevokeByID(ctx context.Context, userID, id, reason string) (bool, error)
}

// Activity reads the account's audit trail.
type Activity interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.AuditLog, error)
}

// UserService serves /users/me.
type UserService struct {
	users      Profiles
	households Households
	sessions   Sessions
	activity   Activity
	events     *telemetry.Publisher
}

// NewUserService returns a UserService.
func NewUserService(users Profiles, households Households, sessions Sessions, activity Activity, events *telemetry.Publisher) *UserService {
	return &UserService{users: users, households: households, sessions: sessions, activity: activity, events: events}
}

// ProfileView is a profile with its completeness flag.
type ProfileView struct {
	*domain.Profile
	IsComplete bool `json:"isComplete"`
}

func viewOf(p *domain.Profile) *ProfileView {
	if p == nil {
		return nil
	}
	return &ProfileView{Profile: p, IsComplete: p.IsComplete()}
}

// HouseholdSummary is the caller's household as shown on /users/me.
type HouseholdSummary struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Role        householddomain.Role `json:"role"`
	MemberCount int                  `json:"memberCount"`
}

// Me is the signed-in account with profile and household summary.
type Me struct {
	ID            string            `json:"id"`
	Email         *string           `json:"email"`
	Phone         *string           `json:"phone"`
	Role          domain.Role       `json:"role"`
	Status        domain.Status     `json:"status"`
	EmailVerified bool              `json:"emailVerified"`
	PhoneVerified bool              `json:"phoneVerified"`
	CreatedAt     time.Time         `json:"createdAt"`
	Profile       *ProfileView      `json:"profile"`
	Household     *HouseholdSummary `json:"household"`
}

func (s *UserService) account(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil || u.Status == domain.StatusDeleted {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	return u, nil
}

// Me returns the caller's account view.
func (s *UserService) Me(ctx context.Context, userID string) (*Me, error) {
	u, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Me{
		ID:            u.ID,
		Email:         optional(u.Email),
		Phone:         optional(u.Phone),
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
		Profile:       viewOf(u.Profile),
	}
	h, err := s.households.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if h != nil {
		out.Household = &HouseholdSummary{ID: h.ID, Name: h.Name, MemberCount: len(h.Members)}
		if m := h.Member(userID); m != nil {
			out.Household.Role = m.Role
		}
	}
	return out, nil
}

const maxProfileText = 200

// UpdateProfile applies a partial profile change. Free text is sanitized.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*ProfileView, error) {
	if _, err := s.account(ctx, userID); err != nil {
		return nil, err
	}
	if err := cleanProfile(&upd); err != nil {
		return nil, err
	}
	p, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	s.events.Publish(ctx, eventdomain.Event{
		Type:       eventdomain.TypeProfileUpdated,
		UserID:     userID,
		Resource:   eventdomain.ResourceUser,
		ResourceID: userID,
	})
	return viewOf(p), nil
}

func cleanProfile(upd *domain.ProfileUpdate) error {
	for _, f := range []*string{upd.FullName, upd.DisplayName, upd.PlaceOfBirth, upd.Gotra, upd.Nakshatra, upd.Rashi} {
		if f == nil {
			continue
		}
		*f = sanitize.Text(*f)
		if len([]rune(*f)) > maxProfileText {
			return apperr.New(apperr.CodeValidation, "Profile field is too long")
		}
	}
	if upd.FullName != nil && *upd.FullName == "" {
		return apperr.New(apperr.CodeValidation, "Full name cannot be empty")
	}
	if v := trimmed(upd.AvatarURL); v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.New(apperr.CodeValidation, "Avatar URL must be an http(s) URL")
		}
	}
	if v := trimmed(upd.DateOfBirth); v != "" {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return apperr.New(apperr.CodeValidation, "Date of birth must be YYYY-MM-DD")
		}
	}
	if v := trimmed(upd.TimeOfBirth); v != "" {
		if _, err := time.Parse("15:04", v); err != nil {
			return apperr.New(apperr.CodeValidation, "Time of birth must be HH:MM")
		}
	}
	if upd.LanguagePreference != nil {
		*upd.LanguagePreference = strings.ToLower(strings.TrimSpace(*upd.LanguagePreference))
		if !domain.IsSupportedLanguage(*upd.LanguagePreference) {
			return apperr.New(apperr.CodeValidation, "Unsupported language preference")
		}
	}
	return nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	*p = strings.TrimSpace(*p)
	return *p
}

// Session is one signed-in device.
type Session struct {
	ID        string                   `json:"id"`
	Device    sessiondomain.DeviceInfo `json:"deviceInfo"`
	IssuedAt  time.Time                `json:"issuedAt"`
	ExpiresAt time.Time                `json:"expiresAt"`
}

// ListSessions returns the caller's active sessions, newest first.
func (s *UserService) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	tokens, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]Session, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Session{ID: t.ID, Device: t.Device, IssuedAt: t.IssuedAt, ExpiresAt: t.ExpiresAt})
	}
	return out, nil
}

// RevokeSession signs one of the caller's devices out.
func (s *UserService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	ok, err := s.sessions.RevokeByID(ctx, userID, sessionID, sessiondomain.ReasonRevokedByUser)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Session not found")
	}
	s.events.Publish(ctx, eventdomain.Event{
		Type:       eventdomain.TypeSessionRevoked,
		UserID:     userID,
		Resource:   eventdomain.ResourceSession,
		ResourceID: sessionID,
	})
	return nil
}

// ActivityEntry is one audit record as shown to its owner.
type ActivityEntry struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	IP        string          `json:"ip"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ListActivity returns the caller's most recent audit entries.
func (s *UserService) ListActivity(ctx context.Context, userID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	logs, err := s.activity.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]ActivityEntry, 0, len(logs))
	for _, l := range logs {
		e := ActivityEntry{ID: l.ID, Action: l.Action, Resource: l.Resource, IP: l.IP, CreatedAt: l.CreatedAt}
		if json.Valid([]byte(l.Metadata)) {
			e.Metadata = json.RawMessage(l.Metadata)
		}
		out = append(out, e)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
