package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/auth"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T) (*SessionService, *memDB, func() error) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	mem := newMemDB()
	s := NewSessionService(db, &fakeRepoManager{mem: mem}, testConfig(), testVerifier(), nopLogger)
	return s, mem, func() error {
		return mock.ExpectationsWereMet()
	}
}

func TestLogin_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mem := newMemDB()
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "correct-pw")
	s := NewSessionService(db, &fakeRepoManager{mem: mem}, testConfig(), testVerifier(), nopLogger)

	expectTx(mock, 1)

	pair, err := s.Login(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	access, err := s.codec.Verify(pair.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, access.Subject)
	assert.Equal(t, "alice", access.Username)

	refresh, err := s.codec.Verify(pair.RefreshToken, auth.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, refresh.Subject)

	_, err = s.codec.Verify(pair.AccessToken, auth.KindRefresh)
	assert.ErrorIs(t, err, common.ErrTokenKindMismatch)
	_, err = s.codec.Verify(pair.RefreshToken, auth.KindAccess)
	assert.ErrorIs(t, err, common.ErrTokenKindMismatch)

	assert.NotNil(t, mem.users[alice.ID].LastLoginAt)
}

func TestLogin_WrongPassword(t *testing.T) {
	s, mem, met := newSessionService(t)
	mem.addUser(t, "alice", models.RoleStaff, true, "correct-pw")

	_, err := s.Login(context.Background(), "alice", "wrong-pw")
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.NoError(t, met())
}

func TestLogin_UnknownUser(t *testing.T) {
	s, _, _ := newSessionService(t)

	_, err := s.Login(context.Background(), "mallory", "whatever")
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

type countingVerifier struct {
	auth.CredentialVerifier
	hashes   int
	verified []string
}

func (v *countingVerifier) Hash(secret string) (string, error) {
	v.hashes++
	return v.CredentialVerifier.Hash(secret)
}

func (v *countingVerifier) Verify(hash, secret string) error {
	v.verified = append(v.verified, hash)
	return v.CredentialVerifier.Verify(hash, secret)
}

func TestLogin_UnknownUserStillComparesHash(t *testing.T) {
	db, _ := newSQLMockDB(t)
	verifier := &countingVerifier{CredentialVerifier: testVerifier()}
	s := NewSessionService(db, &fakeRepoManager{mem: newMemDB()}, testConfig(), verifier, nopLogger)

	for i := 0; i < 2; i++ {
		_, err := s.Login(context.Background(), "mallory", "whatever")
		assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
	}

	require.Len(t, verifier.verified, 2)
	assert.True(t, strings.HasPrefix(verifier.verified[0], "$2"), "expected a bcrypt hash, got %q", verifier.verified[0])
	assert.Equal(t, verifier.verified[0], verifier.verified[1])
	assert.Equal(t, 1, verifier.hashes)
}

func TestLogin_Inactive(t *testing.T) {
	s, mem, _ := newSessionService(t)
	mem.addUser(t, "bob", models.RoleStaff, false, "pw")

	_, err := s.Login(context.Background(), "bob", "pw")
	assert.ErrorIs(t, err, common.ErrInactiveAccount)
}

func TestLogin_InactiveWithWrongPasswordIsAuthFailure(t *testing.T) {
	s, mem, _ := newSessionService(t)
	mem.addUser(t, "bob", models.RoleStaff, false, "pw")

	_, err := s.Login(context.Background(), "bob", "nope")
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestLogin_LastLoginFailureIsIgnored(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mem := newMemDB()
	mem.addUser(t, "alice", models.RoleStaff, true, "correct-pw")
	mem.lastLoginErr = errors.New("disk full")
	s := NewSessionService(db, &fakeRepoManager{mem: mem}, testConfig(), testVerifier(), nopLogger)

	expectRollback(mock)

	pair, err := s.Login(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_BeginFailureIsIgnored(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mem := newMemDB()
	mem.addUser(t, "alice", models.RoleStaff, true, "correct-pw")
	s := NewSessionService(db, &fakeRepoManager{mem: mem}, testConfig(), testVerifier(), nopLogger)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := s.Login(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
}

func TestRefresh_Success(t *testing.T) {
	s, mem, _ := newSessionService(t)
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "pw")

	old, err := s.codec.Issue(alice.ID, "alice", auth.KindRefresh, time.Hour)
	require.NoError(t, err)

	pair, err := s.Refresh(context.Background(), old)
	require.NoError(t, err)

	claims, err := s.codec.Verify(pair.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.Subject)
	assert.NotEqual(t, old, pair.RefreshToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	s, mem, _ := newSessionService(t)
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "pw")

	access, err := s.codec.Issue(alice.ID, "alice", auth.KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), access)
	assert.ErrorIs(t, err, common.ErrTokenKindMismatch)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_Expired(t *testing.T) {
	s, mem, _ := newSessionService(t)
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "pw")

	tok, err := s.codec.Issue(alice.ID, "alice", auth.KindRefresh, -time.Minute)
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRefresh_Deactivated(t *testing.T) {
	s, mem, _ := newSessionService(t)
	bob := mem.addUser(t, "bob", models.RoleStaff, false, "pw")

	tok, err := s.codec.Issue(bob.ID, "bob", auth.KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrInactiveAccount)
}

func TestRefresh_RenamedAccount(t *testing.T) {
	s, mem, _ := newSessionService(t)
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "pw")

	tok, err := s.codec.Issue(alice.ID, "alice", auth.KindRefresh, time.Hour)
	require.NoError(t, err)

	mem.users[alice.ID].UserName = "alice2"

	_, err = s.Refresh(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrAccountMismatch)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_DeletedAccount(t *testing.T) {
	s, _, _ := newSessionService(t)

	tok, err := s.codec.Issue("u-gone", "ghost", auth.KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestResolveCaller(t *testing.T) {
	s, mem, _ := newSessionService(t)
	alice := mem.addUser(t, "alice", models.RoleStaff, true, "pw")
	bob := mem.addUser(t, "bob", models.RoleStaff, false, "pw")

	okToken, _ := s.codec.Issue(alice.ID, "alice", auth.KindAccess, time.Hour)
	refreshToken, _ := s.codec.Issue(alice.ID, "alice", auth.KindRefresh, time.Hour)
	ghostToken, _ := s.codec.Issue("u-gone", "ghost", auth.KindAccess, time.Hour)
	inactiveToken, _ := s.codec.Issue(bob.ID, "bob", auth.KindAccess, time.Hour)
	foreign, _ := auth.NewTokenCodec([]byte("other-secret")).Issue(alice.ID, "alice", auth.KindAccess, time.Hour)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid access token", okToken, nil},
		{"refresh token", refreshToken, common.ErrUnauthenticated},
		{"garbage", "not-a-token", common.ErrUnauthenticated},
		{"foreign signature", foreign, common.ErrUnauthenticated},
		{"deleted identity", ghostToken, common.ErrUnauthenticated},
		{"inactive identity", inactiveToken, common.ErrInactiveAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.ResolveCaller(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.ID, u.ID)
		})
	}
}
