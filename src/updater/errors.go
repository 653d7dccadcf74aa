package updater

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when an update is invoked with zero entities.
// A zero-row VALUES relation is rejected instead of silently doing nothing,
// to surface caller bugs early.
var ErrEmptyBatch = errors.New("entity batch is empty")

// ErrNoKeyDefined is returned when neither the schema nor the updater options
// yield at least one key column to correlate rows on.
var ErrNoKeyDefined = errors.New("no key columns defined")

// ErrNothingToUpdate is returned when the shared field set contains only key
// columns, so the SET clause would be empty.
var ErrNothingToUpdate = errors.New("no non-key columns to update")

// ErrDuplicateKey is returned when two entities in one batch share the same
// key column values. The database would match both VALUES rows against the
// same target row with nondeterministic outcome, so the batch is rejected
// before any statement is sent.
var ErrDuplicateKey = errors.New("duplicate key values in entity batch")

// SchemaMismatchError reports a column required for the operation that is not
// shared between the table schema and the entity type.
type SchemaMismatchError struct {
	Table      string
	Column     string
	EntityType string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("column %s of table %s is not mapped by entity type %s", e.Column, e.Table, e.EntityType)
}

// ExecutionError wraps a driver-level failure. The original cause is carried
// unmodified; no retry or per-row fallback is attempted.
type ExecutionError struct {
	Table string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("bulk update of table %s failed: %v", e.Table, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
