package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/metrics"
	"swadharma/backend/internal/otp"
	otpdomain "swadharma/backend/internal/otp/domain"
	"swadharma/backend/internal/platform/sanitize"
	"swadharma/backend/internal/security"
	sessiondomain "swadharma/backend/internal/session/domain"
	"swadharma/backend/internal/telemetry"
	eventdomain "swadharma/backend/internal/telemetry/domain"
	userdomain "swadharma/backend/internal/user/domain"
	userrepo "swadharma/backend/internal/user/repository"
)

const msgInvalidCredentials = "Invalid email/phone or password"

// UserStore is the subset of the user repository the auth use cases need.
type UserStore interface {
	Create(ctx context.Context, in userrepo.NewUser) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByPhone(ctx context.Context, phone string) (*userdomain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*userdomain.User, error)
	IncrementFailedAttempts(ctx context.Context, id string) (userrepo.Lockout, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	MarkEmailVerified(ctx context.Context, id string) error
	MarkPhoneVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, newPassword string) error
}

// OTPStore issues and verifies one-time codes.
type OTPStore interface {
	Issue(ctx context.Context, contact string, purpose otpdomain.Purpose, userID string) (string, time.Time, error)
	Verify(ctx context.Context, contact, code string, purpose otpdomain.Purpose) (string, error)
	CanResend(ctx context.Context, contact string, purpose otpdomain.Purpose) (bool, time.Duration, error)
}

// TokenStore persists refresh tokens.
type TokenStore interface {
	Store(ctx context.Context, userID, rawToken string, device sessiondomain.DeviceInfo) (*sessiondomain.RefreshToken, error)
	Validate(ctx context.Context, rawToken string) (string, bool, error)
	Revoke(ctx context.Context, rawToken, reason string) error
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
	RevokeIssuedBefore(ctx context.Context, userID string, cutoff time.Time, reason string) (int64, error)
}

// OTPDelivery hands a plaintext code to the contact's channel.
type OTPDelivery interface {
	Deliver(ctx context.Context, d otp.Delivery) error
}

// Config holds the tunables of the auth use cases.
type Config struct {
	PasswordMinLength int
	OTPExpiry         time.Duration
}

// AuthService implements registration, login, OTP verification, token rotation, logout and password change.
type AuthService struct {
	users    UserStore
	otps     OTPStore
	tokens   TokenStore
	delivery OTPDelivery
	hasher   *security.Hasher
	issuer   *security.TokenProvider
	events   *telemetry.Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

// NewAuthService returns an AuthService. events, m and log may be nil.
func NewAuthService(
	users UserStore,
	otps OTPStore,
	tokens TokenStore,
	delivery OTPDelivery,
	hasher *security.Hasher,
	issuer *security.TokenProvider,
	events *telemetry.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg Config,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.OTPExpiry <= 0 {
		cfg.OTPExpiry = 5 * time.Minute
	}
	return &AuthService{
		users:    users,
		otps:     otps,
		tokens:   tokens,
		delivery: delivery,
		hasher:   hasher,
		issuer:   issuer,
		events:   events,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RegisterInput is the Register request.
type RegisterInput struct {
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Password           string `json:"password"`
	FullName           string `json:"fullName"`
	LanguagePreference string `json:"languagePreference"`
	Role               string `json:"role"`
}

// RegisterResult is returned by Register.
type RegisterResult struct {
	UserID               string            `json:"userId"`
	Email                *string           `json:"email"`
	Phone                *string           `json:"phone"`
	Role                 userdomain.Role   `json:"role"`
	Status               userdomain.Status `json:"status"`
	VerificationRequired bool              `json:"verificationRequired"`
	VerificationChannel  string            `json:"verificationChannel"`
}

// AuthResult is returned by Login and VerifyOTP.
type AuthResult struct {
	User   *userdomain.User   `json:"user"`
	Tokens security.TokenPair `json:"tokens"`
}

// Register creates a PENDING account and sends a verification code to its preferred channel.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	res, err := s.register(ctx, in)
	if err != nil {
		s.metrics.Registration(metrics.ResultFailure)
		return nil, err
	}
	s.metrics.Registration(metrics.ResultSuccess)
	return res, nil
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	check := security.ValidatePasswordComplexity(in.Password, s.cfg.PasswordMinLength)
	if !check.Valid {
		return nil, apperr.New(apperr.CodeInvalidPassword, strings.Join(check.Errors, ", "))
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)
	if email == "" && phone == "" {
		return nil, apperr.New(apperr.CodeValidation, "Email or phone is required")
	}
	if email != "" && security.ClassifyContact(email) != security.ChannelEmail {
		return nil, apperr.New(apperr.CodeValidation, "Invalid email address")
	}
	role := userdomain.Role(strings.ToUpper(strings.TrimSpace(in.Role)))
	switch role {
	case "":
		role = userdomain.RoleMember
	case userdomain.RoleMember, userdomain.RoleProvider:
	default:
		return nil, apperr.New(apperr.CodeValidation, "Role must be MEMBER or PROVIDER")
	}
	lang := strings.TrimSpace(in.LanguagePreference)
	if lang == "" {
		lang = userdomain.DefaultLanguage
	}
	if !userdomain.IsSupportedLanguage(lang) {
		return nil, apperr.New(apperr.CodeValidation, "Unsupported language preference")
	}

	if email != "" {
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if existing != nil {
			return nil, apperr.New(apperr.CodeEmailExists, "Email already registered")
		}
	}
	if phone != "" {
		existing, err := s.users.GetByPhone(ctx, phone)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if existing != nil {
			return nil, apperr.New(apperr.CodePhoneExists, "Phone already registered")
		}
	}

	u, err := s.users.Create(ctx, userrepo.NewUser{
		Email:    email,
		Phone:    phone,
		Password: in.Password,
		Role:     role,
		Profile: userdomain.Profile{
			FullName:           sanitize.Text(in.FullName),
			LanguagePreference: lang,
		},
	})
	switch {
	case errors.Is(err, userrepo.ErrDuplicateEmail):
		return nil, apperr.New(apperr.CodeEmailExists, "Email already registered")
	case errors.Is(err, userrepo.ErrDuplicatePhone):
		return nil, apperr.New(apperr.CodePhoneExists, "Phone already registered")
	case err != nil:
		return nil, apperr.Internal(err)
	}

	channel := u.PreferredChannel()
	if err := s.sendCode(ctx, u.Contact(), otpdomain.PurposeRegistration, u.ID); err != nil {
		// The account exists; the user can request a new code with SendOTP.
		s.log.Warn("registration code not delivered", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.publish(ctx, u.ID, eventdomain.TypeRegister, map[string]any{"channel": channel, "role": string(u.Role)})

	return &RegisterResult{
		UserID:               u.ID,
		Email:                nullable(u.Email),
		Phone:                nullable(u.Phone),
		Role:                 u.Role,
		Status:               u.Status,
		VerificationRequired: true,
		VerificationChannel:  channel,
	}, nil
}

// LoginInput is the Login request.
type LoginInput struct {
	Identifier string                   `json:"identifier"`
	Password   string                   `json:"password"`
	Device     sessiondomain.DeviceInfo `json:"deviceInfo"`
}

// Login authenticates by email or phone and password. Unknown accounts and wrong passwords
// fail with the same INVALID_CREDENTIALS error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	res, err := s.login(ctx, in)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		return nil, err
	}
	s.metrics.Login(metrics.ResultSuccess)
	s.metrics.TokensIssued("login")
	return res, nil
}

func (s *AuthService) login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identifier := normalizeContact(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, apperr.New(apperr.CodeInvalidCredentials, msgInvalidCredentials)
	}
	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil || u.Status == userdomain.StatusDeleted {
		s.publish(ctx, "", eventdomain.TypeLoginFailure, map[string]any{"reason": "unknown_account"})
		return nil, apperr.New(apperr.CodeInvalidCredentials, msgInvalidCredentials)
	}
	now := s.now()
	if u.IsLocked(now) {
		return nil, apperr.New(apperr.CodeAccountLocked, "Account is temporarily locked").
			WithDetails(map[string]any{"lockedUntil": u.LockedUntil.UTC()})
	}
	switch u.Status {
	case userdomain.StatusSuspended:
		return nil, apperr.New(apperr.CodeAccountSuspended, "Account is suspended")
	case userdomain.StatusPending:
		code := apperr.CodePhoneNotVerified
		if security.ClassifyContact(identifier) == security.ChannelEmail {
			code = apperr.CodeEmailNotVerified
		}
		return nil, apperr.New(code, "Please verify your account first")
	}

	if !s.hasher.VerifyPassword(in.Password, u.PasswordHash) {
		lock, err := s.users.IncrementFailedAttempts(ctx, u.ID)
		if err != nil {
			s.log.Error("failed to record login failure", zap.String("user_id", u.ID), zap.Error(err))
		}
		s.publish(ctx, u.ID, eventdomain.TypeLoginFailure, map[string]any{"attempts": lock.Attempts})
		if lock.LockedUntil != nil {
			s.publish(ctx, u.ID, eventdomain.TypeAccountLocked, map[string]any{"lockedUntil": lock.LockedUntil.UTC()})
		}
		return nil, apperr.New(apperr.CodeInvalidCredentials, msgInvalidCredentials)
	}

	if err := s.users.ResetFailedAttempts(ctx, u.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	pair, err := s.issue(ctx, u, in.Device)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	s.publish(ctx, u.ID, eventdomain.TypeLoginSuccess, nil)
	return &AuthResult{User: u, Tokens: pair}, nil
}

// VerifyOTPInput is the VerifyOTP request. Purpose is case-insensitive.
type VerifyOTPInput struct {
	Contact string                   `json:"contact"`
	OTP     string                   `json:"otp"`
	Purpose string                   `json:"purpose"`
	Device  sessiondomain.DeviceInfo `json:"deviceInfo"`
}

// VerifyOTP consumes a code, marks the contact verified (activating a PENDING account) and signs the user in.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*AuthResult, error) {
	purpose, ok := otpdomain.ParsePurpose(in.Purpose)
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "Invalid purpose")
	}
	contact := normalizeContact(in.Contact)
	if contact == "" || in.OTP == "" {
		return nil, apperr.New(apperr.CodeValidation, "Contact and OTP are required")
	}

	if _, err := s.otps.Verify(ctx, contact, strings.TrimSpace(in.OTP), purpose); err != nil {
		return nil, otpError(err)
	}

	channel := security.ClassifyContact(contact)
	var (
		u   *userdomain.User
		err error
	)
	if channel == security.ChannelEmail {
		u, err = s.users.GetByEmail(ctx, contact)
	} else {
		u, err = s.users.GetByPhone(ctx, contact)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	if channel == security.ChannelEmail {
		err = s.users.MarkEmailVerified(ctx, u.ID)
	} else {
		err = s.users.MarkPhoneVerified(ctx, u.ID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	pair, err := s.issue(ctx, u, in.Device)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if updated == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	updated.PasswordHash = ""
	s.metrics.TokensIssued("verify_otp")
	s.publish(ctx, u.ID, eventdomain.TypeOTPVerified, map[string]any{"purpose": string(purpose), "channel": string(channel)})
	return &AuthResult{User: updated, Tokens: pair}, nil
}

func otpError(err error) error {
	switch {
	case errors.Is(err, otpdomain.ErrExpired):
		return apperr.New(apperr.CodeOTPExpired, "OTP has expired")
	case errors.Is(err, otpdomain.ErrMaxAttempts):
		return apperr.New(apperr.CodeMaxAttempts, "Too many attempts")
	case errors.Is(err, otpdomain.ErrInvalid):
		return apperr.New(apperr.CodeInvalidOTP, "Invalid OTP")
	default:
		return apperr.Internal(err)
	}
}

// SendOTPResult is returned by SendOTP.
type SendOTPResult struct {
	Sent       bool   `json:"sent"`
	Channel    string `json:"channel"`
	ExpiresIn  int    `json:"expiresIn"`
	RetryAfter int    `json:"retryAfter"`
}

// SendOTP issues a fresh code for an existing account, subject to the resend cooldown.
func (s *AuthService) SendOTP(ctx context.Context, identifier, purposeRaw string) (*SendOTPResult, error) {
	purpose, ok := otpdomain.ParsePurpose(purposeRaw)
	if !ok || purpose == otpdomain.PurposeInvite {
		return nil, apperr.New(apperr.CodeValidation, "Invalid purpose")
	}
	contact := normalizeContact(identifier)
	if contact == "" {
		return nil, apperr.New(apperr.CodeValidation, "Contact is required")
	}
	u, err := s.users.GetByIdentifier(ctx, contact)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	allowed, retryAfter, err := s.otps.CanResend(ctx, contact, purpose)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !allowed {
		return nil, apperr.New(apperr.CodeRateLimit, "Please wait before requesting a new OTP").
			WithDetails(map[string]any{"retryAfter": int(math.Ceil(retryAfter.Seconds()))})
	}
	if err := s.sendCode(ctx, contact, purpose, u.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	channel := security.ClassifyContact(contact)
	s.publish(ctx, u.ID, eventdomain.TypeOTPSent, map[string]any{"purpose": string(purpose), "channel": string(channel)})
	return &SendOTPResult{
		Sent:       true,
		Channel:    string(channel),
		ExpiresIn:  int(s.cfg.OTPExpiry.Seconds()),
		RetryAfter: int(otpdomain.ResendCooldown.Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, device sessiondomain.DeviceInfo) (*security.TokenPair, error) {
	invalid := apperr.New(apperr.CodeInvalidToken, "Invalid or expired refresh token")
	if rawToken == "" {
		return nil, invalid
	}
	if _, err := s.issuer.VerifyRefresh(rawToken); err != nil {
		return nil, invalid
	}
	userID, ok, err := s.tokens.Validate(ctx, rawToken)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, invalid
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil || u.Status == userdomain.StatusDeleted {
		return nil, invalid
	}
	if u.Status == userdomain.StatusSuspended {
		return nil, apperr.New(apperr.CodeAccountSuspended, "Account is suspended")
	}
	if err := s.tokens.Revoke(ctx, rawToken, sessiondomain.ReasonRefreshed); err != nil {
		return nil, apperr.Internal(err)
	}
	pair, err := s.issue(ctx, u, device)
	if err != nil {
		return nil, err
	}
	s.metrics.TokensIssued("refresh")
	s.publish(ctx, u.ID, eventdomain.TypeTokenRefreshed, nil)
	return &pair, nil
}

// LogoutInput is the Logout request.
type LogoutInput struct {
	RefreshToken string `json:"refreshToken"`
	AllDevices   bool   `json:"allDevices"`
}

// LogoutResult reports how many sessions were ended.
type LogoutResult struct {
	DevicesLoggedOut int64 `json:"devicesLoggedOut"`
}

// Logout revokes every session of userID when AllDevices is set, otherwise only the presented
// refresh token when it belongs to userID. With neither, nothing is revoked.
func (s *AuthService) Logout(ctx context.Context, userID string, in LogoutInput) (*LogoutResult, error) {
	var n int64
	switch {
	case in.AllDevices:
		count, err := s.tokens.RevokeAllForUser(ctx, userID, sessiondomain.ReasonLogoutAll)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		n = count
	case in.RefreshToken != "":
		owner, ok, err := s.tokens.Validate(ctx, in.RefreshToken)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if ok && owner == userID {
			if err := s.tokens.Revoke(ctx, in.RefreshToken, sessiondomain.ReasonLogout); err != nil {
				return nil, apperr.Internal(err)
			}
			n = 1
		}
	}
	s.publish(ctx, userID, eventdomain.TypeLogout, map[string]any{"allDevices": in.AllDevices, "revoked": n})
	return &LogoutResult{DevicesLoggedOut: n}, nil
}

// ChangePasswordInput is the ChangePassword request.
type ChangePasswordInput struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	LogoutOtherDevices bool   `json:"logoutOtherDevices"`
}

// ChangePasswordResult is returned by ChangePassword.
type ChangePasswordResult struct {
	PasswordChanged  bool  `json:"passwordChanged"`
	DevicesLoggedOut int64 `json:"devicesLoggedOut"`
}

// ChangePassword replaces the password after checking the current one. With LogoutOtherDevices,
// every session issued before the change is revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (*ChangePasswordResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "User not found")
	}
	if !s.hasher.VerifyPassword(in.CurrentPassword, u.PasswordHash) {
		return nil, apperr.New(apperr.CodeInvalidPassword, "Current password is incorrect")
	}
	check := security.ValidatePasswordComplexity(in.NewPassword, s.cfg.PasswordMinLength)
	if !check.Valid {
		return nil, apperr.New(apperr.CodeInvalidPassword, strings.Join(check.Errors, ", "))
	}
	cutoff := s.now()
	if err := s.users.UpdatePassword(ctx, userID, in.NewPassword); err != nil {
		return nil, apperr.Internal(err)
	}
	res := &ChangePasswordResult{PasswordChanged: true}
	if in.LogoutOtherDevices {
		n, err := s.tokens.RevokeIssuedBefore(ctx, userID, cutoff, sessiondomain.ReasonPasswordChange)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		res.DevicesLoggedOut = n
	}
	s.publish(ctx, userID, eventdomain.TypePasswordChanged, map[string]any{"devicesLoggedOut": res.DevicesLoggedOut})
	return res, nil
}

// issue signs a token pair for u and persists the refresh half.
func (s *AuthService) issue(ctx context.Context, u *userdomain.User, device sessiondomain.DeviceInfo) (security.TokenPair, error) {
	pair, err := s.issuer.IssuePair(u.ID, string(u.Role))
	if err != nil {
		return security.TokenPair{}, apperr.Internal(err)
	}
	if _, err := s.tokens.Store(ctx, u.ID, pair.RefreshToken, device); err != nil {
		return security.TokenPair{}, apperr.Internal(err)
	}
	return pair, nil
}

func (s *AuthService) sendCode(ctx context.Context, contact string, purpose otpdomain.Purpose, userID string) error {
	code, expiresAt, err := s.otps.Issue(ctx, contact, purpose, userID)
	if err != nil {
		return err
	}
	if s.delivery == nil {
		return nil
	}
	return s.delivery.Deliver(ctx, otp.Delivery{
		Channel:   security.ClassifyContact(contact),
		Contact:   contact,
		Purpose:   string(purpose),
		Code:      code,
		ExpiresAt: expiresAt,
	})
}

func (s *AuthService) publish(ctx context.Context, userID, eventType string, metadata map[string]any) {
	s.events.Publish(ctx, eventdomain.Event{
		Type:     eventType,
		UserID:   userID,
		Resource: eventdomain.ResourceAuth,
		Metadata: metadata,
	})
}

// normalizeContact trims identifier and lowercases it when it is an email.
func normalizeContact(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if security.ClassifyContact(identifier) == security.ChannelEmail {
		return strings.ToLower(identifier)
	}
	return identifier
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
