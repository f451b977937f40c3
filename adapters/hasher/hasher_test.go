package hasher_test

import (
	"testing"

	"github.com/artpar/cloudgate/adapters/hasher"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndCompare(t *testing.T) {
	h := hasher.NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("mockpassword")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !h.Compare(hash, "mockpassword") {
		t.Error("Compare should accept the original password")
	}
	if h.Compare(hash, "wrong") {
		t.Error("Compare should reject a different password")
	}
	if h.Compare([]byte("not-a-hash"), "mockpassword") {
		t.Error("Compare should reject a malformed hash")
	}
}

func TestBcrypt_InvalidCostFallsBack(t *testing.T) {
	for _, cost := range []int{1, 100} {
		h := hasher.NewBcrypt(cost)
		hash, err := h.Hash("x")
		if err != nil {
			t.Fatalf("Hash with cost %d failed: %v", cost, err)
		}
		got, _ := bcrypt.Cost(hash)
		if got != bcrypt.DefaultCost {
			t.Errorf("cost = %d, want %d", got, bcrypt.DefaultCost)
		}
	}
}

func TestIsHash(t *testing.T) {
	hash, _ := hasher.NewBcrypt(bcrypt.MinCost).Hash("secret")

	tests := []struct {
		input string
		want  bool
	}{
		{string(hash), true},
		{"mockpassword", false},
		{"", false},
		{"$2a$10$short", false},
	}
	for _, tt := range tests {
		if got := hasher.IsHash(tt.input); got != tt.want {
			t.Errorf("IsHash(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlain(t *testing.T) {
	h := hasher.Plain{}
	hash, _ := h.Hash("mockpassword")
	if !h.Compare(hash, "mockpassword") {
		t.Error("Plain should accept equal strings")
	}
	if h.Compare(hash, "other") {
		t.Error("Plain should reject different strings")
	}
}
