// Package auth provides token validation and request throttling for
// the feed service. Authentication is optional: with no signing key
// configured every connection is anonymous.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "dealgraph/pkg/errors"
)

// Claims carried by dashboard tokens
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTService validates and issues HMAC-signed dashboard tokens
type JWTService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewJWTService creates a token service. An empty secret disables
// authentication; Enabled reports the resulting mode.
func NewJWTService(secret, issuer string, lifetime time.Duration) *JWTService {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
	}
}

// Enabled reports whether tokens are required
func (s *JWTService) Enabled() bool {
	return len(s.secret) > 0
}

// IssueToken mints a token for a user, used by the demo login flow and
// by tests
func (s *JWTService) IssueToken(userID string) (string, error) {
	if !s.Enabled() {
		return "", pkgerrors.NewInternalError("token service has no signing key")
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to sign token").WithCause(err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, pkgerrors.NewUnauthorizedError("authentication is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, pkgerrors.NewUnauthorizedError("invalid token").WithCause(err)
	}
	if !token.Valid {
		return nil, pkgerrors.NewUnauthorizedError("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, pkgerrors.NewUnauthorizedError("token has no user identity")
	}
	return claims, nil
}
