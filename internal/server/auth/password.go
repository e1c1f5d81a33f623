package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier hashes new secrets and checks submitted ones against
// stored hashes.
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) error
}

// BcryptVerifier is the CredentialVerifier backed by bcrypt.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier returns a verifier hashing with cost; out-of-range values
// fall back to bcrypt.DefaultCost.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

func (v *BcryptVerifier) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty password", common.ErrValidation)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", common.ErrValidation)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify returns common.ErrAuthenticationFailed when secret does not match
// hash, including when hash is malformed.
func (v *BcryptVerifier) Verify(hash, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return common.ErrAuthenticationFailed
	}
	return nil
}
