package application

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifySecret(t *testing.T) {
	t.Parallel()

	encoded, err := HashSecret("4321", testArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if err := VerifySecret(encoded, "4321"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := VerifySecret(encoded, "1234"); !errors.Is(err, errSecretMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	again, err := HashSecret("4321", testArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if again == encoded {
		t.Fatalf("expected a fresh salt per hash")
	}
}

func TestVerifySecret_RejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	if err := VerifySecret("plain", "4321"); !errors.Is(err, ErrInvalidSecretHash) {
		t.Fatalf("expected ErrInvalidSecretHash, got %v", err)
	}
	if err := VerifySecret("$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "4321"); !errors.Is(err, ErrInvalidSecretHash) {
		t.Fatalf("expected ErrInvalidSecretHash, got %v", err)
	}
	if err := VerifySecret("$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA", "4321"); !errors.Is(err, ErrIncompatibleSecretVersion) {
		t.Fatalf("expected ErrIncompatibleSecretVersion, got %v", err)
	}
}
