// Package common defines shared constants and sentinel errors used across
// the snaptrack server layers. Callers should use errors.Is to match these
// values; most of them are wrapped with additional context on the way up.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("forbidden")
	ErrStorageFailure = errors.New("storage failure")

	// Authentication errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInactiveAccount      = errors.New("inactive account")
	ErrUnauthenticated      = errors.New("unauthenticated")

	// Token errors. Every specific token error wraps ErrInvalidToken so
	// transports can treat them uniformly.
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidSignature  = fmt.Errorf("%w: signature is invalid", ErrInvalidToken)
	ErrTokenExpired      = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrTokenKindMismatch = fmt.Errorf("%w: unexpected token kind", ErrInvalidToken)
	ErrAccountMismatch   = fmt.Errorf("%w: account mismatch", ErrInvalidToken)
)
