// Package locations persists shared location reference data.
package locations

import (
	"context"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, l *models.Location) (*models.Location, error)
	GetByID(ctx context.Context, id string) (*models.Location, error)
	List(ctx context.Context, offset, limit int) ([]*models.Location, error)
}
