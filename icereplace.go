// Package icereplace wires the replace-and-verify workflow end to end:
// resolve the caller's identity, connect a catalog, create the target table
// if absent, atomically overwrite its content with a batch of records, and
// read the committed snapshot back for verification.
package icereplace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/florinutz/icereplace/catalog"
	"github.com/florinutz/icereplace/catalog/glue"
	"github.com/florinutz/icereplace/catalog/hadoop"
	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/identity"
	"github.com/florinutz/icereplace/internal/config"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
	"github.com/florinutz/icereplace/storage"
)

// Result is the outcome of a successful workflow run.
type Result struct {
	// AccountID is the resolved caller identity, empty for local catalogs.
	AccountID string
	// Snapshot identifies the committed table state.
	Snapshot replacer.Snapshot
	// Rows is the table content read back after the overwrite.
	Rows []record.Record
}

// Run executes the full workflow. Every stage failure is returned with its
// kind intact so the caller can distinguish benign conditions from fatal
// ones; the only condition Run continues past is a table that already exists
// with the intended schema.
func Run(ctx context.Context, cfg config.Config, schema record.Schema, batch record.Batch, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	res := &Result{}

	if cfg.CatalogType == "glue" {
		provider, err := identity.OpenSTS(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		account, err := provider.AccountID(ctx)
		if err != nil {
			return nil, err
		}
		res.AccountID = account
		logger.Info("resolved caller identity", "account_id", account)
	}

	cat, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	if err := catalog.EnsureTable(ctx, cat, cfg.Namespace, cfg.TableName, schema); err != nil {
		return nil, fmt.Errorf("ensure table %s.%s: %w", cfg.Namespace, cfg.TableName, err)
	}
	tbl, err := cat.LoadTable(ctx, cfg.Namespace, cfg.TableName)
	if err != nil {
		return nil, err
	}

	r := replacer.New(
		replacer.WithMaxAttempts(cfg.MaxAttempts),
		replacer.WithBackoff(cfg.BackoffBase, cfg.BackoffCap),
		replacer.WithLogger(logger),
	)

	snap, err := r.Overwrite(ctx, tbl, batch, schema)
	if err != nil {
		return nil, err
	}
	res.Snapshot = snap
	logger.Info("overwrote table",
		"table", tbl.Name(),
		"rows", len(batch),
		"snapshot", snap.String())

	rows, err := r.ReadAll(ctx, tbl)
	if err != nil {
		return nil, err
	}
	res.Rows = rows
	logger.Info("verified table content", "table", tbl.Name(), "rows", len(rows))
	return res, nil
}

// openCatalog builds the configured catalog implementation.
func openCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger) (catalog.Catalog, error) {
	switch cfg.CatalogType {
	case "glue":
		return glue.Open(ctx, glue.Options{
			Name:      cfg.CatalogName,
			Region:    cfg.Region,
			Warehouse: cfg.Warehouse,
			Logger:    logger,
		})
	case "hadoop":
		store, err := openWarehouse(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return hadoop.New(cfg.CatalogName, store, hadoop.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown catalog type %q", cfg.CatalogType)
	}
}

// openWarehouse resolves the hadoop catalog's backing store from the
// warehouse location: an s3:// URI selects the S3 store, anything else is a
// local directory.
func openWarehouse(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	loc, ok := strings.CutPrefix(cfg.Warehouse, "s3://")
	if !ok {
		return storage.NewLocal(cfg.Warehouse), nil
	}
	bucket, prefix, _ := strings.Cut(loc, "/")
	if bucket == "" {
		return nil, &icereplaceerr.CatalogConnectError{
			Catalog: cfg.CatalogName,
			URI:     cfg.Warehouse,
			Err:     fmt.Errorf("warehouse %q has no bucket", cfg.Warehouse),
		}
	}
	return storage.OpenS3(ctx, storage.S3Options{
		Region:          cfg.Region,
		Bucket:          bucket,
		Prefix:          prefix,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
}
