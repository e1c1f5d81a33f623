package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/auth"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/policy"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/users"
	"github.com/go-playground/validator/v10"
)

const maxUserNameLength = 50

var validate = validator.New()

// NewUser is the input for creating an identity.
type NewUser struct {
	UserName string
	Email    string
	Password string
	FullName *string
	Role     models.Role
}

// UserUpdate carries optional changes; nil fields are left untouched.
type UserUpdate struct {
	UserName  *string
	Email     *string
	Password  *string
	FullName  *string
	AvatarURL *string
	Role      *models.Role
	IsActive  *bool
}

// UserService manages identities. Every call is checked against the
// authorization policy.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	verifier    auth.CredentialVerifier
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, verifier auth.CredentialVerifier, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		verifier:    verifier,
		logger:      logger.With("module", "users"),
	}
}

// Register is public self-registration; the new identity is always staff.
func (s *UserService) Register(ctx context.Context, in NewUser) (*models.User, error) {
	in.Role = models.RoleStaff
	return s.create(ctx, in)
}

// Bootstrap creates an identity with the requested role without a caller.
// It backs the command line tooling used to seed the first admin.
func (s *UserService) Bootstrap(ctx context.Context, in NewUser) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleStaff
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in NewUser) (*models.User, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateUserName(in.UserName); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, in.Role)
	}

	hash, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Users(tx).Create(ctx, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user created", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *UserService) Get(ctx context.Context, caller *models.User, id string) (*models.User, error) {
	user, target, err := loadUserTarget(ctx, s.repomanager.Users(s.db), id)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionRead, target); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, caller *models.User, offset, limit int) ([]*models.User, error) {
	target := policy.Target{Kind: policy.ResourceUser, Exists: true}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionRead, target); err != nil {
		return nil, err
	}
	if err := checkPage(offset, limit); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx, offset, limit)
}

// UpdateSelf is the self-service profile path. It never changes the
// username, role or active flag.
func (s *UserService) UpdateSelf(ctx context.Context, caller *models.User, upd UserUpdate) (*models.User, error) {
	if caller == nil {
		return nil, common.ErrForbidden
	}
	upd.UserName = trimmed(upd.UserName)
	if upd.UserName != nil && *upd.UserName != caller.UserName {
		return nil, fmt.Errorf("%w: username cannot be changed", common.ErrValidation)
	}
	if upd.Role != nil || upd.IsActive != nil {
		return nil, fmt.Errorf("%w: role and status cannot be changed through the profile", common.ErrValidation)
	}
	upd.UserName = nil
	return s.Update(ctx, caller, caller.ID, upd)
}

// Update applies upd to the identity id. Renames and role or status changes
// are checked as separate actions on top of the plain update.
func (s *UserService) Update(ctx context.Context, caller *models.User, id string, upd UserUpdate) (*models.User, error) {
	upd.UserName = trimmed(upd.UserName)
	upd.Email = trimmed(upd.Email)

	var updated *models.User

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, target, err := loadUserTarget(ctx, repo, id)
		if err != nil {
			return err
		}

		subject := policy.SubjectOf(caller)
		if err := policy.Check(subject, policy.ActionUpdate, target); err != nil {
			return err
		}
		if upd.UserName != nil && *upd.UserName != user.UserName {
			if err := policy.Check(subject, policy.ActionRename, target); err != nil {
				return err
			}
		}
		if (upd.Role != nil && *upd.Role != user.Role) || (upd.IsActive != nil && *upd.IsActive != user.IsActive) {
			if err := policy.Check(subject, policy.ActionGrant, target); err != nil {
				return err
			}
		}

		if err := s.apply(user, upd); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *UserService) apply(user *models.User, upd UserUpdate) error {
	if upd.UserName != nil {
		if err := validateUserName(*upd.UserName); err != nil {
			return err
		}
		user.UserName = *upd.UserName
	}
	if upd.Email != nil {
		if err := validateEmail(*upd.Email); err != nil {
			return err
		}
		user.Email = *upd.Email
	}
	if upd.Password != nil {
		hash, err := s.verifier.Hash(*upd.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	if upd.FullName != nil {
		user.FullName = upd.FullName
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = upd.AvatarURL
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", common.ErrValidation, *upd.Role)
		}
		user.Role = *upd.Role
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	return nil
}

// Delete removes an identity; owned invoices go with it.
func (s *UserService) Delete(ctx context.Context, caller *models.User, id string) error {
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, target, err := loadUserTarget(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := policy.Check(policy.SubjectOf(caller), policy.ActionDelete, target); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user deleted", "user_id", id, "by", caller.ID)
	return nil
}

// loadUserTarget fetches the identity and describes it for the policy. A
// missing identity is not an error here; the policy turns it into NotFound.
func loadUserTarget(ctx context.Context, repo users.Repository, id string) (*models.User, policy.Target, error) {
	target := policy.Target{Kind: policy.ResourceUser}

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, target, nil
		}
		return nil, target, err
	}

	target.OwnerID = user.ID
	target.Exists = true
	return user, target, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func validateUserName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if len(name) > maxUserNameLength {
		return fmt.Errorf("%w: username is too long", common.ErrValidation)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return nil
}
