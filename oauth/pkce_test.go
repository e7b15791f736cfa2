package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"
)

func TestGeneratePKCE_S256(t *testing.T) {
	pair, err := GeneratePKCE(PKCES256)
	if err != nil {
		t.Fatalf("GeneratePKCE(S256) error = %v", err)
	}
	if len(pair.Verifier) != 43 {
		t.Errorf("verifier length = %d, want 43", len(pair.Verifier))
	}

	sum := sha256.Sum256([]byte(pair.Verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if pair.Challenge != want {
		t.Errorf("challenge = %q, want base64url(sha256(verifier)) = %q", pair.Challenge, want)
	}
	if !VerifierMatches(pair.Verifier, pair.Challenge, PKCES256) {
		t.Error("VerifierMatches() = false for generated pair")
	}
}

func TestGeneratePKCE_Plain(t *testing.T) {
	pair, err := GeneratePKCE(PKCEPlain)
	if err != nil {
		t.Fatalf("GeneratePKCE(plain) error = %v", err)
	}
	if pair.Challenge != pair.Verifier {
		t.Error("plain challenge must equal verifier")
	}
	if !VerifierMatches(pair.Verifier, pair.Challenge, PKCEPlain) {
		t.Error("VerifierMatches() = false for plain pair")
	}
}

func TestGeneratePKCE_Unsupported(t *testing.T) {
	if _, err := GeneratePKCE(PKCEMethod("S512")); err == nil {
		t.Error("GeneratePKCE(S512) error = nil, want error")
	}
	if _, err := GeneratePKCE(PKCEDisabled); err == nil {
		t.Error("GeneratePKCE(disabled) error = nil, want error")
	}
}

func TestGeneratePKCE_Unique(t *testing.T) {
	a, err := GeneratePKCE(PKCES256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GeneratePKCE(PKCES256)
	if err != nil {
		t.Fatal(err)
	}
	if a.Verifier == b.Verifier {
		t.Error("two generated verifiers are identical")
	}
}

func TestVerifierMatches_Mismatch(t *testing.T) {
	pair, err := GeneratePKCE(PKCES256)
	if err != nil {
		t.Fatal(err)
	}
	if VerifierMatches("not-the-verifier-but-43-characters-long-pad", pair.Challenge, PKCES256) {
		t.Error("VerifierMatches() = true for wrong verifier")
	}
}

func TestTokenValidAt(t *testing.T) {
	now := mustParse(t, "2025-06-01T12:00:00Z")
	buffer := DefaultValidityBuffer

	tests := []struct {
		name  string
		token *Token
		want  bool
	}{
		{"nil token", nil, false},
		{"no access token", &Token{}, false},
		{"no expiry", &Token{AccessToken: "a"}, true},
		{"well before expiry", &Token{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, true},
		{"inside buffer", &Token{AccessToken: "a", ExpiresAt: now.Add(120 * time.Second)}, false},
		{"already expired", &Token{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.ValidAt(now, buffer); got != tt.want {
				t.Errorf("ValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashUserID(t *testing.T) {
	a := HashUserID("token-a")
	b := HashUserID("token-b")

	if a == b {
		t.Error("different tokens hash to the same id")
	}
	if a != HashUserID("token-a") {
		t.Error("hash not deterministic")
	}
	if len(a) != len("oauth2-")+16 {
		t.Errorf("id length = %d, want prefix plus 16 hex chars", len(a))
	}
	if a == "token-a" || b == "token-b" {
		t.Error("id echoes the raw token")
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}
