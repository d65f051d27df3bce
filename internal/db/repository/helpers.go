package repository

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"lake-ingest/internal/domain"
)

// mapDBError converts driver errors into domain errors.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("audit entry not found")
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return domain.ErrConflict("audit entry already exists")
		}
	}
	return err
}
