// Package categories persists invoice categories.
package categories

import (
	"context"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]*models.Category, error)
}
