package nakama

import (
	"strings"
	"testing"
)

func TestSeatTokenRoundTrip(t *testing.T) {
	secret := "unit-test-secret"
	token, err := issueSeatToken(secret, "sess-42", "user-7", 3)
	if err != nil {
		t.Fatalf("issueSeatToken: %v", err)
	}
	claim, err := parseSeatToken(secret, token)
	if err != nil {
		t.Fatalf("parseSeatToken: %v", err)
	}
	if claim.SessionID != "sess-42" || claim.UserID != "user-7" || claim.Seat != 3 {
		t.Fatalf("claim = %+v", claim)
	}
}

func TestSeatTokenWrongSecret(t *testing.T) {
	token, err := issueSeatToken("secret-a", "sess-1", "user-1", 0)
	if err != nil {
		t.Fatalf("issueSeatToken: %v", err)
	}
	if _, err := parseSeatToken("secret-b", token); err == nil {
		t.Fatalf("token verified under the wrong secret")
	}
}

func TestSeatTokenTampered(t *testing.T) {
	secret := "unit-test-secret"
	token, err := issueSeatToken(secret, "sess-1", "user-1", 0)
	if err != nil {
		t.Fatalf("issueSeatToken: %v", err)
	}
	parts := strings.Split(token, ".")
	parts[1] = "eyJzaWQiOiJvdGhlciJ9"
	if _, err := parseSeatToken(secret, strings.Join(parts, ".")); err == nil {
		t.Fatalf("tampered token accepted")
	}
}

func TestSeatTokenRequiresSecret(t *testing.T) {
	if _, err := issueSeatToken("", "sess-1", "user-1", 0); err == nil {
		t.Fatalf("token issued without a secret")
	}
}

func TestParseSeatTokenGarbage(t *testing.T) {
	if _, err := parseSeatToken("secret", "not-a-jwt"); err == nil {
		t.Fatalf("garbage parsed")
	}
}

func TestSeatTokenSecretFallback(t *testing.T) {
	if got := seatTokenSecret(map[string]string{"seat_token_secret": "from-env"}); got != "from-env" {
		t.Errorf("secret = %q", got)
	}
	if got := seatTokenSecret(nil); got == "" {
		t.Errorf("no fallback secret")
	}
}
