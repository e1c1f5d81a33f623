// Package users contains persistence for identities.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
