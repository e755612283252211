package security

import (
	"errors"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !h.Verify(password, hash) {
		t.Fatal("Verify should match")
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(4)
	a, _ := h.Hash([]byte("secret123"))
	b, _ := h.Hash([]byte("secret123"))
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
	if h.Verify([]byte("wrong"), hash) {
		t.Fatal("Verify with wrong password should be false")
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.Verify([]byte("secret123"), "not-a-bcrypt-hash") {
		t.Fatal("Verify with malformed hash should be false")
	}
}

func TestHasher_EmptyPassword(t *testing.T) {
	h := NewHasher(4)
	if _, err := h.Hash(nil); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Hash(nil) err = %v, want ErrEmptyPassword", err)
	}
}

func TestHasher_CompareDummy(t *testing.T) {
	h := NewHasher(4)
	h.CompareDummy([]byte("anything"))
	if h.dummy == nil {
		t.Error("CompareDummy should initialise its reference hash")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	h1 := NewHasher(99)
	if h1.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", h1.Cost)
	}
}
