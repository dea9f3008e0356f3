package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrIndexNotFound is returned when an index identifier does not resolve
	// to a sealed index: it was never created, is still ingesting, was
	// aborted, or has been deleted.
	ErrIndexNotFound = errors.New("index not found")

	// ErrDuplicateVertex is returned when an ingestion inserts a second
	// vertex with an id already used within the same index.
	ErrDuplicateVertex = errors.New("duplicate vertex id")
)

// StorageError wraps a failure of the underlying database. Op names the
// operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// translateError wraps driver failures so callers see one persistence error
// type. Errors already part of the store taxonomy pass through unchanged.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrDuplicateVertex) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// isConstraint reports whether err is a SQLite constraint violation, which on
// the vertices table means a duplicate (index_id, id) pair.
func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
