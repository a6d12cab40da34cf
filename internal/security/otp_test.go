package security

import (
	"strconv"
	"testing"
)

func TestGenerateOTP_Range(t *testing.T) {
	for i := 0; i < 500; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("OTP %q length = %d, want 6", otp, len(otp))
		}
		n, err := strconv.Atoi(otp)
		if err != nil {
			t.Fatalf("OTP %q is not numeric", otp)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("OTP %d out of range", n)
		}
	}
}

func TestGenerateOTP_Randomness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 100; i++ {
		otp, _ := GenerateOTP()
		if seen[otp] {
			dupes++
		}
		seen[otp] = true
	}
	// 100 draws from 900000 values; more than one collision points at a broken generator.
	if dupes > 1 {
		t.Errorf("too many duplicate OTPs: %d", dupes)
	}
}

func TestHashOTP(t *testing.T) {
	stored := HashOTP("123456")
	if stored == "123456" {
		t.Fatal("hash must not equal the code")
	}
	if !OTPEqual("123456", stored) {
		t.Error("OTPEqual should match its own hash")
	}
	if OTPEqual("654321", stored) {
		t.Error("OTPEqual should reject a different code")
	}
}

func TestGenerateInviteToken(t *testing.T) {
	a, err := GenerateInviteToken()
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	b, _ := GenerateInviteToken()
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("two invite tokens should differ")
	}
}
