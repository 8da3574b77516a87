package service

import (
	"database/sql"
	"errors"

	"github.com/dat-nglt/cusc-schedule/pkg/database"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

// mapWriteError turns constraint violations into client errors and anything else into a 500.
func mapWriteError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "")
	case database.IsUniqueViolation(err):
		switch database.ConstraintName(err) {
		case database.AccountsEmailConstraint:
			return appErrors.Clone(appErrors.ErrConflict, "email already registered")
		case database.AccountsGoogleIDConstraint:
			return appErrors.Clone(appErrors.ErrConflict, "google account already linked")
		}
		return appErrors.Clone(appErrors.ErrConflict, "a record with the same unique value already exists")
	case database.IsForeignKeyViolation(err):
		return appErrors.Clone(appErrors.ErrValidation, "referenced row does not exist")
	case database.IsCheckViolation(err):
		return appErrors.Clone(appErrors.ErrValidation, "value violates a constraint")
	}
	return appErrors.Internal(err, message)
}

// lookupError maps a missing row to 404 and everything else to 500.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Internal(err, "failed to load "+entity)
}
