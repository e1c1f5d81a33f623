package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

const invoiceColumns = `id, user_id, location_id, category_id, status, note, metadata, captured_at, created_at, updated_at`

const defaultListLimit = 100

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var status string
	var metadata []byte
	err := s.Scan(&inv.ID, &inv.UserID, &inv.LocationID, &inv.CategoryID, &status, &inv.Note,
		&metadata, &inv.CapturedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceStatus(status)
	inv.Metadata, err = decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(b []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// capturedAtArg lets the database default captured_at when the caller did not
// supply one.
func capturedAtArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	metadata, err := encodeMetadata(inv.Metadata)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO invoices (user_id, location_id, category_id, status, note, metadata, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		 RETURNING id, captured_at, created_at`

	err = r.db.QueryRowContext(ctx, query,
		inv.UserID, inv.LocationID, inv.CategoryID, string(inv.Status), inv.Note, metadata, capturedAtArg(inv.CapturedAt),
	).Scan(&inv.ID, &inv.CapturedAt, &inv.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	if inv.Metadata == nil {
		inv.Metadata = map[string]any{}
	}
	return inv, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return inv, nil
}

// List returns invoices matching filter, newest capture first.
func (r *PostgresRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.LocationID != "" {
		add("location_id = $%d", filter.LocationID)
	}
	if filter.CategoryID != nil {
		add("category_id = $%d", *filter.CategoryID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + invoiceColumns + ` FROM invoices`)
	if len(conds) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(conds, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, filter.Offset, limit)
	fmt.Fprintf(&sb, ` ORDER BY captured_at DESC, id OFFSET $%d LIMIT $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoices: %w", err)
	}
	defer rows.Close()

	var result []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Update rewrites the mutable columns; user_id is immutable.
func (r *PostgresRepository) Update(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	metadata, err := encodeMetadata(inv.Metadata)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE invoices
		 SET location_id = $2, category_id = $3, status = $4, note = $5, metadata = $6,
		     captured_at = COALESCE($7, captured_at), updated_at = now()
		 WHERE id = $1
		 RETURNING captured_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		inv.ID, inv.LocationID, inv.CategoryID, string(inv.Status), inv.Note, metadata, capturedAtArg(inv.CapturedAt),
	).Scan(&inv.CapturedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	return inv, nil
}

// Delete removes the invoice; its attachment rows cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}
