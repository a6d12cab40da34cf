package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned for malformed tokens, bad signatures and wrong token types.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when a well-formed, correctly signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

const refreshTokenType = "refresh"

// Claims is the payload of both access and refresh tokens.
// A pair issued together shares the same ID (jti).
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Type string `json:"type,omitempty"`
}

// UserID returns the subject.
func (c *Claims) UserID() string { return c.Subject }

// TokenPair is the token shape returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// TokenProvider issues and verifies HS256 access and refresh tokens signed with distinct secrets.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenProvider returns a TokenProvider. The secrets must be non-empty and different.
func NewTokenProvider(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("security: token secrets must be set")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("security: access and refresh secrets must differ")
	}
	return &TokenProvider{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// RefreshTTL returns the refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssuePair issues an access and a refresh token for userID sharing one random jti.
func (p *TokenProvider) IssuePair(userID, role string) (TokenPair, error) {
	jti, err := generateJTI()
	if err != nil {
		return TokenPair{}, err
	}
	now := p.now().UTC()
	access := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
		Role: role,
	}
	refresh := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.refreshTTL)),
		},
		Role: role,
		Type: refreshTokenType,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(p.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(p.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(p.accessTTL / time.Second),
	}, nil
}

// VerifyAccess checks signature and expiry of an access token.
// Returns ErrTokenExpired or ErrTokenInvalid on failure. A refresh token is rejected.
func (p *TokenProvider) VerifyAccess(token string) (*Claims, error) {
	claims, err := p.parse(token, p.accessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Type == refreshTokenType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token.
// Returns ErrTokenExpired or ErrTokenInvalid on failure. An access token is rejected.
func (p *TokenProvider) VerifyRefresh(token string) (*Claims, error) {
	claims, err := p.parse(token, p.refreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.Type != refreshTokenType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
