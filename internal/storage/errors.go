package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

// pgxNoRows lets repositories signal "no matching row" through mapError
// without importing pgx at every call site.
var pgxNoRows = pgx.ErrNoRows

// mapError converts pgx/pgconn errors into the shared error taxonomy.
// Context cancellation passes through untouched.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", entity, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", entity, models.ErrConflict)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", entity, models.ErrValidation)
		}
	}

	return fmt.Errorf("%s: %w", entity, err)
}
