// Package attachments persists attachment rows. The binary payload is kept
// elsewhere; a row only records where it lives.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*models.Attachment, error)
	Delete(ctx context.Context, id string) error
	DeleteByInvoice(ctx context.Context, invoiceID string) (int64, error)
}
