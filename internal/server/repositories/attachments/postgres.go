package attachments

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

const attachmentColumns = `id, invoice_id, file_path, file_name, file_size, mime_type, gps_latitude, gps_longitude, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(s scanner) (*models.Attachment, error) {
	a := &models.Attachment{}
	err := s.Scan(&a.ID, &a.InvoiceID, &a.FilePath, &a.FileName, &a.FileSize, &a.MimeType,
		&a.GPSLatitude, &a.GPSLongitude, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	query :=
		`INSERT INTO invoice_images (invoice_id, file_path, file_name, file_size, mime_type, gps_latitude, gps_longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.InvoiceID, a.FilePath, a.FileName, a.FileSize, a.MimeType, a.GPSLatitude, a.GPSLongitude,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM invoice_images WHERE id = $1`

	a, err := scanAttachment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return a, nil
}

// ListByInvoice returns attachments in upload order.
func (r *PostgresRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*models.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM invoice_images WHERE invoice_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoice_images WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

// DeleteByInvoice removes every attachment row of the invoice and returns how
// many were deleted.
func (r *PostgresRepository) DeleteByInvoice(ctx context.Context, invoiceID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoice_images WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
