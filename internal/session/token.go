package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the console can learn from a bearer token without
// verifying it. The backend remains the authority on validity.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseToken reads the sub and exp claims of a JWT without verifying the
// signature. Opaque (non-JWT) tokens return an error and a zero TokenInfo.
func ParseToken(token string) (TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("parse token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
