package security

import (
	"testing"
)

func TestHashToken_Consistent(t *testing.T) {
	hash1 := HashToken("bearer-123")
	hash2 := HashToken("bearer-123")
	if hash1 != hash2 {
		t.Errorf("HashToken not consistent: %q vs %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("different tokens produced the same hash")
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("correct-token")
	tests := []struct {
		name     string
		provided string
		stored   string
		want     bool
	}{
		{"match", "correct-token", stored, true},
		{"wrong token", "wrong-token", stored, false},
		{"longer stored hash", "correct-token", "a" + stored, false},
		{"same length different content", "correct-token", "0" + stored[1:], stored[0] == '0'},
		{"empty inputs", "", "", false},
		{"empty token", "", stored, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenHashEqual(tt.provided, tt.stored); got != tt.want {
				t.Errorf("TokenHashEqual = %v, want %v", got, tt.want)
			}
		})
	}
}
