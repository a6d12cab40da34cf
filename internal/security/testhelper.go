package security

import "time"

// NewTestTokenProvider returns a TokenProvider with fixed secrets, a 1h access and 30d refresh lifetime.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() *TokenProvider {
	p, err := NewTokenProvider("test-access-secret", "test-refresh-secret", time.Hour, 30*24*time.Hour)
	if err != nil {
		panic(err)
	}
	return p
}
