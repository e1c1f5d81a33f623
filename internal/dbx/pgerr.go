package dbx

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// MapError wraps err as "db error: ..." and attaches the matching sentinel
// from common so services can branch with errors.Is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("db error: %w: %s", common.ErrAlreadyExists, pgErr.ConstraintName)
		case pgForeignKeyViolation, pgCheckViolation, pgInvalidText:
			return fmt.Errorf("db error: %w: %s", common.ErrValidation, pgErr.Message)
		}
	}

	return fmt.Errorf("db error: %w", err)
}

// ExpectOneRow turns a zero rows-affected result into common.ErrorNotFound.
func ExpectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
