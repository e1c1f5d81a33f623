package locations

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

const (
	locationColumns  = `id, name, address, code, gps_latitude, gps_longitude, created_at`
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

func scanLocation(s scanner) (*models.Location, error) {
	l := &models.Location{}
	if err := s.Scan(&l.ID, &l.Name, &l.Address, &l.Code, &l.GPSLatitude, &l.GPSLongitude, &l.CreatedAt); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.Location) (*models.Location, error) {
	query :=
		`INSERT INTO locations (name, address, code, gps_latitude, gps_longitude)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, l.Name, l.Address, l.Code, l.GPSLatitude, l.GPSLongitude).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return l, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	l, err := scanLocation(r.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return l, nil
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.Location, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + locationColumns + ` FROM locations ORDER BY name, id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select locations: %w", err)
	}
	defer rows.Close()

	var result []*models.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
