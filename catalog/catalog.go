// Package catalog defines the catalog collaborator interface: a registry
// that maps namespace-qualified table names to table handles.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
)

// Catalog resolves and registers tables. Implementations: the AWS Glue
// Iceberg REST catalog (production) and the filesystem catalog (local/dev).
type Catalog interface {
	// Name returns the logical catalog identifier.
	Name() string

	// CreateTable registers a new empty table with the given schema.
	// Fails with *icereplaceerr.TableAlreadyExistsError when the identifier
	// is already registered.
	CreateTable(ctx context.Context, namespace, table string, schema record.Schema) error

	// LoadTable resolves an existing table. Fails with
	// *icereplaceerr.TableNotFoundError when the identifier is unknown.
	LoadTable(ctx context.Context, namespace, table string) (replacer.Table, error)

	// Close releases catalog resources.
	Close() error
}

// EnsureTable creates the table if absent. An already-registered table is
// benign, but only after its stored schema is verified against the intended
// one: silently proceeding past an existing table with a different schema
// would let schema drift go undetected until the first write.
func EnsureTable(ctx context.Context, cat Catalog, namespace, table string, schema record.Schema) error {
	err := cat.CreateTable(ctx, namespace, table, schema)
	if err == nil {
		return nil
	}
	if !icereplaceerr.Benign(err) {
		return err
	}

	tbl, err := cat.LoadTable(ctx, namespace, table)
	if err != nil {
		return fmt.Errorf("verify existing table: %w", err)
	}
	stored, err := tbl.Schema(ctx)
	if err != nil {
		return fmt.Errorf("verify existing table schema: %w", err)
	}
	if !stored.Equal(schema) {
		return &icereplaceerr.SchemaMismatchError{
			Table:  tbl.Name(),
			Reason: fmt.Sprintf("existing table has %s, intended %s", stored, schema),
		}
	}
	return nil
}

// IsNotFound reports whether err is a table-not-found failure.
func IsNotFound(err error) bool {
	var notFound *icereplaceerr.TableNotFoundError
	return errors.As(err, &notFound)
}
