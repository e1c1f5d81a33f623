// Package auth implements credential checks and the bearer token codec.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access tokens from refresh tokens. A token is only ever
// accepted for the kind it was issued as.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload carried by every token. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Kind     Kind   `json:"type"`
}

// TokenCodec signs and verifies HS256 tokens with a process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret, now: time.Now}
}

// Issue produces a signed token for subjectID that expires after ttl.
func (c *TokenCodec) Issue(subjectID, username string, kind Kind, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		Kind:     kind,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks expiry, signature and kind, in that order. An elapsed token
// is reported as expired even when its signature is also wrong.
func (c *TokenCodec) Verify(tokenString string, expected Kind) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return nil, common.ErrInvalidToken
	}

	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, common.ErrTokenExpired
	}

	if err != nil || !token.Valid {
		return nil, common.ErrInvalidSignature
	}

	if claims.Kind != expected {
		return nil, common.ErrTokenKindMismatch
	}

	return claims, nil
}
