package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestDecodeTokenReadsRoleWithoutSecret(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, TokenClaims{
		Role: "manager",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	info, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if info.Role != "manager" || info.Subject != "alice" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, info.ExpiresAt)
	}
	if info.Expired(time.Now()) {
		t.Fatalf("token should not be expired")
	}
	if !info.Expired(exp.Add(time.Second)) {
		t.Fatalf("token should be expired after exp")
	}
}

func TestDecodeTokenRoleFallbacks(t *testing.T) {
	info, err := DecodeToken(signToken(t, TokenClaims{UserRole: "staff"}))
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if info.Role != "staff" {
		t.Fatalf("expected userRole fallback, got %q", info.Role)
	}

	info, err = DecodeToken(signToken(t, jwt.RegisteredClaims{Subject: "bob"}))
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if info.Role != DefaultRole {
		t.Fatalf("expected default role, got %q", info.Role)
	}
	if info.Expired(time.Now()) {
		t.Fatalf("token without exp never expires")
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := DecodeToken(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if token, ok := BearerToken("Bearer abc.def"); !ok || token != "abc.def" {
		t.Fatalf("unexpected bearer parse %q %v", token, ok)
	}
	if token, ok := BearerToken("bearer   xyz "); !ok || token != "xyz" {
		t.Fatalf("scheme should be case-insensitive, got %q %v", token, ok)
	}
	for _, raw := range []string{"", "Bearer ", "Basic abc", "abc"} {
		if _, ok := BearerToken(raw); ok {
			t.Fatalf("expected no token for %q", raw)
		}
	}
}
