package auth

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier_RoundTrip(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	hash, err := v.Hash("correct-pw")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-pw", hash)

	assert.NoError(t, v.Verify(hash, "correct-pw"))
	assert.ErrorIs(t, v.Verify(hash, "wrong-pw"), common.ErrAuthenticationFailed)
}

func TestBcryptVerifier_MalformedHash(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)
	assert.ErrorIs(t, v.Verify("not-a-hash", "pw"), common.ErrAuthenticationFailed)
}

func TestBcryptVerifier_HashValidation(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	_, err := v.Hash("")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = v.Hash(strings.Repeat("x", 80))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestNewBcryptVerifier_CostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptVerifier(bcrypt.MinCost).cost)
}
