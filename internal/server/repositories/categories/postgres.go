package categories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

const (
	categoryColumns  = `id, name, code, icon_name, description, is_active`
	defaultListLimit = 100
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*models.Category, error) {
	c := &models.Category{}
	if err := s.Scan(&c.ID, &c.Name, &c.Code, &c.IconName, &c.Description, &c.IsActive); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	query :=
		`INSERT INTO categories (name, code, icon_name, description, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, c.Name, c.Code, c.IconName, c.Description, c.IsActive).Scan(&c.ID); err != nil {
		return nil, dbx.MapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*models.Category, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name, id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
