// Package invoices contains persistence for invoices.
package invoices

import (
	"context"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, inv *models.Invoice) (*models.Invoice, error)
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
}
