package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	pub, priv := newEdKeys(t)
	c, err := NewCodec(Config{
		SigningMethod: MethodEdDSA,
		Keys:          NewStaticKeySource(MethodEdDSA, priv, pub),
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func writeEdPEM(t *testing.T, dir string) (string, string) {
	t.Helper()
	pub, priv := newEdKeys(t)
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatalf("write private: %v", err)
	}
	if err := os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600); err != nil {
		t.Fatalf("write public: %v", err)
	}
	return privPath, pubPath
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1", Username: "alice", Email: "a@example.com"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u-1" || claims.Type != KindAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Username != "alice" || claims.Email != "a@example.com" {
		t.Fatalf("display claims not embedded: %+v", claims)
	}
	if claims.ID == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatalf("registered claims missing: %+v", claims.RegisteredClaims)
	}
	if err := VerifyKind(claims, KindAccess); err != nil {
		t.Fatalf("VerifyKind: %v", err)
	}
}

func TestRefreshTokenOmitsDisplayClaims(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Issue(KindRefresh, SubjectClaims{Subject: "u-1", Username: "alice", Email: "a@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "" || claims.Email != "" {
		t.Fatalf("refresh token should not carry display claims: %+v", claims)
	}
}

func TestTokensAreUnique(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.Issue(KindRefresh, SubjectClaims{Subject: "u-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := c.Issue(KindRefresh, SubjectClaims{Subject: "u-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a == b {
		t.Fatal("two tokens issued in the same instant must differ")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := newTestCodec(t)
	verifier := newTestCodec(t)

	tok, err := signer.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(tok); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-2"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := c.Verify(forged); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	c := newTestCodec(t)

	claims := Claims{
		Type: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature for HS256 token, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := c.Verify(none); err == nil {
		t.Fatal("alg=none token must be rejected")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	c := newTestCodec(t)
	for _, raw := range []string{"", "abc", "a.b.c", "not.a.token.at.all"} {
		if _, err := c.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	pub, priv := newEdKeys(t)
	keys := NewStaticKeySource(MethodEdDSA, priv, pub)

	issuer, err := NewCodec(Config{Keys: keys, Issuer: "other"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	verifier, err := NewCodec(Config{Keys: keys, Issuer: "authcore"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	tok, err := issuer.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(tok); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestVerifyKindMismatch(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue(KindRefresh, SubjectClaims{Subject: "u-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := VerifyKind(claims, KindAccess); !errors.Is(err, ErrTokenKindMismatch) {
		t.Fatalf("expected ErrTokenKindMismatch, got %v", err)
	}
	if err := VerifyKind(nil, KindAccess); !errors.Is(err, ErrTokenKindMismatch) {
		t.Fatalf("expected ErrTokenKindMismatch for nil claims, got %v", err)
	}
}

func TestFileKeySourceMissingFile(t *testing.T) {
	dir := t.TempDir()
	keys := NewFileKeySource(MethodEdDSA, filepath.Join(dir, "private.pem"), filepath.Join(dir, "public.pem"))
	c, err := NewCodec(Config{Keys: keys})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	if _, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute); !errors.Is(err, ErrKeySourceUnavailable) {
		t.Fatalf("expected ErrKeySourceUnavailable from Issue, got %v", err)
	}
	if _, err := c.Verify("a.b.c"); err == nil {
		t.Fatal("expected Verify to fail")
	}
}

func TestFileKeySourceLoadsPEMLazily(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	keys := NewFileKeySource(MethodEdDSA, privPath, pubPath)
	c, err := NewCodec(Config{Keys: keys})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	if _, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute); !errors.Is(err, ErrKeySourceUnavailable) {
		t.Fatalf("expected ErrKeySourceUnavailable before files exist, got %v", err)
	}

	gotPriv, gotPub := writeEdPEM(t, dir)
	if gotPriv != privPath || gotPub != pubPath {
		t.Fatalf("unexpected key paths %s %s", gotPriv, gotPub)
	}

	tok, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue after key files appeared: %v", err)
	}
	if _, err := c.Verify(tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Cached: removing the files no longer matters.
	_ = os.Remove(privPath)
	_ = os.Remove(pubPath)
	if _, err := c.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute); err != nil {
		t.Fatalf("Issue with cached key: %v", err)
	}
}

func TestVerifyKeySourceUnavailable(t *testing.T) {
	signer := newTestCodec(t)
	tok, err := signer.Issue(KindAccess, SubjectClaims{Subject: "u-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	dir := t.TempDir()
	c, err := NewCodec(Config{Keys: NewFileKeySource(MethodEdDSA, "", filepath.Join(dir, "missing.pem"))})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrKeySourceUnavailable) {
		t.Fatalf("expected ErrKeySourceUnavailable, got %v", err)
	}
}

func TestRS256RoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})
	pubDER, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal rsa public: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	c, err := NewCodec(Config{
		SigningMethod: MethodRS256,
		Keys:          NewStaticKeySource(MethodRS256, privPEM, pubPEM),
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	tok, err := c.Issue(KindRefresh, SubjectClaims{Subject: "u-9"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u-9" || claims.Type != KindRefresh {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestNewCodecValidation(t *testing.T) {
	pub, priv := newEdKeys(t)
	keys := NewStaticKeySource(MethodEdDSA, priv, pub)

	cases := []Config{
		{},
		{Keys: keys, SigningMethod: "HS256"},
		{Keys: keys, Leeway: -time.Second},
		{Keys: keys, Leeway: 5 * time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewCodec(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.Issue("id", SubjectClaims{Subject: "u"}, time.Minute); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if _, err := c.Issue(KindAccess, SubjectClaims{}, time.Minute); err == nil {
		t.Fatal("expected empty subject to fail")
	}
	if _, err := c.Issue(KindAccess, SubjectClaims{Subject: "u"}, 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
}
