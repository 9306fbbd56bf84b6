package application

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	t.Run("hash verifies against the original password", func(t *testing.T) {
		hash, err := CreatePasswordHash("correct horse battery staple", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(hash, "$argon2id$") {
			t.Fatalf("expected a PHC encoded argon2id hash, got %q", hash)
		}
		if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
			t.Fatalf("the original password must verify: %v", err)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		hash, err := CreatePasswordHash("correct horse battery staple", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := VerifyPassword(hash, "incorrect"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("hashes are salted", func(t *testing.T) {
		first, err := CreatePasswordHash("same password", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := CreatePasswordHash("same password", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first == second {
			t.Fatalf("two hashes of the same password must differ")
		}
	})

	t.Run("malformed stored hashes are flagged", func(t *testing.T) {
		for _, hash := range []string{
			"",
			"plaintext",
			"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
		} {
			if err := VerifyPassword(hash, "anything"); !errors.Is(err, ErrInvalidPasswordHash) {
				t.Fatalf("hash %q: expected ErrInvalidPasswordHash, got %v", hash, err)
			}
		}
	})
}
