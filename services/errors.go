package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound: the referenced profile, session or lead does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the requested transition is not allowed from the current state.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// StoreError wraps a failed persistence call (timeout, lost connection).
// XP-awarding callers must surface it so the triggering action can be retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: store failure: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr classifies an error coming out of a transaction.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &StoreError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
