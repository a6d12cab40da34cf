package security

import (
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	passwords := []string{"Passw0rd", "Another1Secret", "ÜnicodeÄ9", "   Spaces1 "}
	for _, p := range passwords {
		hash, err := h.HashPassword(p)
		if err != nil {
			t.Fatalf("HashPassword(%q): %v", p, err)
		}
		if hash == p {
			t.Fatal("hash must not equal the plaintext")
		}
		if !h.VerifyPassword(p, hash) {
			t.Errorf("VerifyPassword(%q, own hash) = false", p)
		}
		for _, other := range passwords {
			if other != p && h.VerifyPassword(other, hash) {
				t.Errorf("VerifyPassword(%q, hash of %q) = true", other, p)
			}
		}
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(4)
	a, _ := h.HashPassword("Passw0rd")
	b, _ := h.HashPassword("Passw0rd")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.VerifyPassword("Passw0rd", "") {
		t.Error("empty hash must not verify")
	}
	if h.VerifyPassword("Passw0rd", "not-a-bcrypt-hash") {
		t.Error("malformed hash must not verify")
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost != DefaultPasswordCost {
		t.Errorf("zero cost should select default, got %d", h.Cost)
	}
	if h := NewHasher(1); h.Cost < 4 {
		t.Errorf("low cost should be clamped to MinCost, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost > 31 {
		t.Errorf("high cost should be clamped to MaxCost, got %d", h.Cost)
	}
}
