package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifyLegacyBcrypt(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := hasher.Verify("legacy-password", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt verification to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("wrong-password", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}

	upgrade, err := hasher.NeedsUpgrade(string(legacy))
	if err != nil || !upgrade {
		t.Fatalf("bcrypt hashes must need an upgrade, upgrade=%v err=%v", upgrade, err)
	}
}

func TestVerifyCorruptBcrypt(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Verify("whatever-password", "$2b$10$short"); err == nil {
		t.Fatal("expected corrupt bcrypt hash to error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if _, err := NewArgon2(DefaultConfig()); err != nil {
		t.Fatalf("DefaultConfig must validate: %v", err)
	}
}
