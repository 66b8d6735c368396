package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRole is shown when a token carries no role claim.
const DefaultRole = "User"

// TokenClaims is the subset of the inventory-service token the gateway reads.
type TokenClaims struct {
	Role     string `json:"role,omitempty"`
	UserRole string `json:"userRole,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is the display data decoded from a bearer token.
type TokenInfo struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// DecodeToken reads the claims of a bearer token without verifying its
// signature. The token is issued and verified by the upstream services; the
// gateway only needs the role for display and the expiry for session TTLs.
func DecodeToken(tokenString string) (TokenInfo, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return TokenInfo{}, fmt.Errorf("token is empty")
	}

	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("decode token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject, Role: strings.TrimSpace(claims.Role)}
	if info.Role == "" {
		info.Role = strings.TrimSpace(claims.UserRole)
	}
	if info.Role == "" {
		info.Role = DefaultRole
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
