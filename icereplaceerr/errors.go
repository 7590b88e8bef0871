// Package icereplaceerr defines the typed errors returned by icereplace.
// Callers decide programmatically what to do with a failure (retry a
// conflict, ignore an already-exists, abort on a schema mismatch) by
// matching with errors.As rather than by inspecting message text.
package icereplaceerr

import (
	"context"
	"errors"
	"fmt"
)

// AuthError indicates that the caller's cloud identity could not be resolved.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("resolve caller identity: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CatalogConnectError indicates that the catalog endpoint could not be reached
// or refused the session.
type CatalogConnectError struct {
	Catalog string
	URI     string
	Err     error
}

func (e *CatalogConnectError) Error() string {
	return fmt.Sprintf("connect catalog %s at %s: %v", e.Catalog, e.URI, e.Err)
}

func (e *CatalogConnectError) Unwrap() error {
	return e.Err
}

// TableAlreadyExistsError is returned by a create when the table is already
// registered. It is benign for an idempotent create-if-absent flow.
type TableAlreadyExistsError struct {
	Namespace string
	Table     string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %s.%s already exists", e.Namespace, e.Table)
}

// TableNotFoundError indicates that a load referenced a table the catalog
// does not know about.
type TableNotFoundError struct {
	Namespace string
	Table     string
	Err       error
}

func (e *TableNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("table %s.%s not found: %v", e.Namespace, e.Table, e.Err)
	}
	return fmt.Sprintf("table %s.%s not found", e.Namespace, e.Table)
}

func (e *TableNotFoundError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError indicates that a batch, a record, or the table's stored
// schema does not match the declared schema. Never retryable.
type SchemaMismatchError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	msg := "schema mismatch"
	if e.Table != "" {
		msg += " on " + e.Table
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	return msg + ": " + e.Reason
}

// WriteConflictError indicates that the engine rejected a commit because the
// table was modified concurrently. The write can be retried from a fresh
// table state.
type WriteConflictError struct {
	Table string
	Err   error
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("write conflict on %s: %v", e.Table, e.Err)
}

func (e *WriteConflictError) Unwrap() error {
	return e.Err
}

// TransportError indicates a lower-level communication failure (network,
// storage I/O, deadline expiry) during an operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReadError indicates that a scan failed: missing table state, transport
// failure, or an undecodable data file.
type ReadError struct {
	Table string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Table, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is a meaningfully transient failure: a write
// conflict or a transport error. Schema mismatches and anything else are
// permanent. Context cancellation is never retryable even when wrapped in a
// transport error.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var conflict *WriteConflictError
	if errors.As(err, &conflict) {
		return true
	}
	var transport *TransportError
	return errors.As(err, &transport)
}

// Benign reports whether err may be ignored by an idempotent create flow.
func Benign(err error) bool {
	var exists *TableAlreadyExistsError
	return errors.As(err, &exists)
}
