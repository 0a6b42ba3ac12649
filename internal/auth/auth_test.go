package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParseToken(t *testing.T) {
	tok, err := IssueToken("secret", "user_1", []string{"5_questions"}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	p, err := ParseToken("secret", tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if p.UserID != "user_1" || !p.Has("5_questions") || p.Has("unlimited_questions") {
		t.Fatalf("unexpected principal: %#v", p)
	}

	if _, err := ParseToken("other", tok); err == nil {
		t.Fatalf("expected signature error with wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tok, err := IssueToken("secret", "user_1", nil, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken("secret", tok); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseToken_RejectsNonHMAC(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseToken("secret", s); err == nil {
		t.Fatalf("expected none-signed token to be rejected")
	}
}

func TestIssueToken_RequiresUser(t *testing.T) {
	if _, err := IssueToken("secret", "", nil, time.Minute); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected anonymous context")
	}
	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1"})
	p, ok := FromContext(ctx)
	if !ok || p.UserID != "u1" {
		t.Fatalf("unexpected principal: %#v %v", p, ok)
	}
	if _, ok := FromContext(WithPrincipal(context.Background(), Principal{})); ok {
		t.Fatalf("expected empty principal to count as anonymous")
	}
}
