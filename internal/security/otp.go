package security

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999

	inviteTokenBytes = 32
)

// GenerateOTP returns a 6-digit code drawn uniformly from 100000–999999 using crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// HashOTP returns the deterministic one-way hash stored for an OTP.
func HashOTP(code string) string {
	return HashToken(code)
}

// OTPEqual reports in constant time whether code hashes to storedHash.
func OTPEqual(code, storedHash string) bool {
	return TokenHashEqual(code, storedHash)
}

// GenerateInviteToken returns 256 random bits hex-encoded. The token is used directly as a lookup key.
func GenerateInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
