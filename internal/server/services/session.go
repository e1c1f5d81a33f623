// Package services contains server-side business logic. Services open their
// own transactions through dbx.WithTx and obtain repositories bound to either
// the pool or the transaction from the RepositoryManager.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/auth"
	"github.com/dmitrijs2005/snaptrack/internal/server/config"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// SessionService authenticates identities and mints stateless bearer tokens.
// Nothing about a session is stored server side.
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	codec                        *auth.TokenCodec
	verifier                     auth.CredentialVerifier
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	logger                       logging.Logger
	now                          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	verifier auth.CredentialVerifier, logger logging.Logger) *SessionService {
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		codec:                        auth.NewTokenCodec([]byte(cfg.SecretKey)),
		verifier:                     verifier,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		logger:                       logger.With("module", "session"),
		now:                          time.Now,
	}
}

// Login checks the credentials and returns a fresh token pair. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the same hashing work as for a known user.
			_ = s.verifier.Verify(s.unknownUserHash(), password)
			return nil, common.ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := s.verifier.Verify(user.PasswordHash, password); err != nil {
		return nil, common.ErrAuthenticationFailed
	}

	if !user.IsActive {
		return nil, common.ErrInactiveAccount
	}

	s.recordLogin(ctx, user.ID)

	return s.issuePair(user)
}

// unknownUserHash is a hash of a random secret made with the configured
// verifier, compared against when the username does not exist.
func (s *SessionService) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.verifier.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn(context.Background(), "failed to prepare unknown user hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// recordLogin stores the last-login timestamp. Failures are logged only.
func (s *SessionService) recordLogin(ctx context.Context, userID string) {
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).UpdateLastLogin(ctx, userID, s.now())
	})
	if err != nil {
		s.logger.Warn(ctx, "failed to record last login", "user_id", userID, "error", err)
	}
}

// Refresh exchanges a valid refresh token for a new pair. The username
// embedded in the token must still match the account, so renaming an
// identity invalidates refresh tokens issued before the rename.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountMismatch
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if user.UserName != claims.Username {
		return nil, common.ErrAccountMismatch
	}
	if !user.IsActive {
		return nil, common.ErrInactiveAccount
	}

	return s.issuePair(user)
}

// ResolveCaller maps an access token onto the identity that owns it.
// Token problems and vanished identities yield ErrUnauthenticated; a
// deactivated identity yields ErrInactiveAccount.
func (s *SessionService) ResolveCaller(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: identity no longer exists", common.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !user.IsActive {
		return nil, common.ErrInactiveAccount
	}

	return user, nil
}

func (s *SessionService) issuePair(user *models.User) (*TokenPair, error) {
	access, err := s.codec.Issue(user.ID, user.UserName, auth.KindAccess, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	refresh, err := s.codec.Issue(user.ID, user.UserName, auth.KindRefresh, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: common.TokenType}, nil
}
