// Package glue adapts the AWS Glue Iceberg catalog from apache/iceberg-go.
// This is the production path: table metadata lives in Glue, data in S3, and
// all commit/scan mechanics are delegated to the engine.
package glue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/iceberg-go"
	icecatalog "github.com/apache/iceberg-go/catalog"
	icglue "github.com/apache/iceberg-go/catalog/glue"
	icetable "github.com/apache/iceberg-go/table"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/florinutz/icereplace/catalog"
	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
)

// appendBatchSize is the row-group size handed to the engine's writer.
const appendBatchSize = 1024

// Options configures the Glue catalog connection.
type Options struct {
	// Name is the logical catalog identifier, for logs and errors.
	Name string
	// Region is the AWS region of the Glue endpoint.
	Region string
	// Warehouse is the S3 location new tables are created under,
	// e.g. "s3://my-bucket/warehouse".
	Warehouse string
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Catalog is a Glue-backed implementation of catalog.Catalog.
type Catalog struct {
	name      string
	warehouse string
	cat       icecatalog.Catalog
	logger    *slog.Logger
}

var _ catalog.Catalog = (*Catalog)(nil)

// Open connects to Glue using the ambient AWS credential chain.
func Open(ctx context.Context, opts Options) (*Catalog, error) {
	if opts.Warehouse == "" {
		return nil, errors.New("glue: warehouse is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, &icereplaceerr.CatalogConnectError{
			Catalog: opts.Name,
			URI:     "glue:" + opts.Region,
			Err:     err,
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		name:      opts.Name,
		warehouse: strings.TrimRight(opts.Warehouse, "/"),
		cat:       icglue.NewCatalog(icglue.WithAwsConfig(cfg)),
		logger:    logger,
	}, nil
}

func (c *Catalog) Name() string { return c.name }

func (c *Catalog) Close() error { return nil }

// CreateTable registers the table in Glue, creating the namespace on demand.
func (c *Catalog) CreateTable(ctx context.Context, namespace, table string, schema record.Schema) error {
	nsIdent := icecatalog.ToIdentifier(namespace)
	exists, err := c.cat.CheckNamespaceExists(ctx, nsIdent)
	if err != nil {
		return &icereplaceerr.TransportError{Op: "check namespace", Err: err}
	}
	if !exists {
		if err := c.cat.CreateNamespace(ctx, nsIdent, nil); err != nil {
			return &icereplaceerr.TransportError{Op: "create namespace", Err: err}
		}
		c.logger.Info("created namespace", "catalog", c.name, "namespace", namespace)
	}

	iceSchema, err := toIcebergSchema(schema)
	if err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}
	location := c.warehouse + "/" + table
	_, err = c.cat.CreateTable(ctx, icecatalog.ToIdentifier(namespace, table), iceSchema,
		icecatalog.WithLocation(location))
	if err != nil {
		if errors.Is(err, icecatalog.ErrTableAlreadyExists) {
			return &icereplaceerr.TableAlreadyExistsError{Namespace: namespace, Table: table}
		}
		return &icereplaceerr.TransportError{Op: "create table", Err: err}
	}

	c.logger.Info("created table",
		"catalog", c.name,
		"namespace", namespace,
		"table", table,
		"location", location)
	return nil
}

// LoadTable resolves the table from Glue.
func (c *Catalog) LoadTable(ctx context.Context, namespace, table string) (replacer.Table, error) {
	tbl, err := c.cat.LoadTable(ctx, icecatalog.ToIdentifier(namespace, table), nil)
	if err != nil {
		if errors.Is(err, icecatalog.ErrNoSuchTable) {
			return nil, &icereplaceerr.TableNotFoundError{Namespace: namespace, Table: table, Err: err}
		}
		return nil, &icereplaceerr.TransportError{Op: "load table", Err: err}
	}
	return &Table{
		name:   namespace + "." + table,
		tbl:    tbl,
		logger: c.logger,
	}, nil
}

// Table wraps an engine table handle.
type Table struct {
	name   string
	tbl    *icetable.Table
	logger *slog.Logger
}

var _ replacer.Table = (*Table)(nil)

func (t *Table) Name() string { return t.name }

// Schema returns the table's stored schema in record form.
func (t *Table) Schema(context.Context) (record.Schema, error) {
	return fromIcebergSchema(t.tbl.Schema())
}

// Replace stages a delete of every live data file plus an append of data in
// one transaction, so the commit publishes the new content atomically and the
// table's current snapshot holds nothing else. The transaction keeps the
// base-snapshot assertion from the delete, so a concurrent writer who commits
// first fails this commit instead of losing rows.
func (t *Table) Replace(ctx context.Context, data arrow.Record) (replacer.Snapshot, error) {
	data.Retain()
	at := array.NewTableFromRecords(data.Schema(), []arrow.Record{data})
	defer at.Release()
	defer data.Release()

	txn := t.tbl.NewTransaction()
	if t.tbl.CurrentSnapshot() != nil {
		stale, err := currentDataFiles(ctx, t.tbl)
		if err != nil {
			return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "plan live data files", Err: err}
		}
		if len(stale) > 0 {
			if err := txn.ReplaceDataFiles(ctx, stale, nil, nil); err != nil {
				return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "stage delete", Err: err}
			}
		}
	}
	if err := txn.AppendTable(ctx, at, appendBatchSize, nil); err != nil {
		return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "stage append", Err: err}
	}

	committed, err := txn.Commit(ctx)
	if err != nil {
		return replacer.Snapshot{}, commitError(t.name, err)
	}
	t.tbl = committed

	snap := committed.CurrentSnapshot()
	if snap == nil {
		return replacer.Snapshot{}, fmt.Errorf("commit on %s produced no snapshot", t.name)
	}
	return replacer.Snapshot{ID: snap.SnapshotID, SequenceNumber: snap.SequenceNumber}, nil
}

// currentDataFiles lists the data files reachable from the table's current
// snapshot, the set a full replace has to retire.
func currentDataFiles(ctx context.Context, tbl *icetable.Table) ([]string, error) {
	tasks, err := tbl.Scan().PlanFiles(ctx)
	if err != nil {
		return nil, err
	}
	return taskFilePaths(tasks), nil
}

func taskFilePaths(tasks []icetable.FileScanTask) []string {
	paths := make([]string, 0, len(tasks))
	for _, task := range tasks {
		paths = append(paths, task.File.FilePath())
	}
	return paths
}

// commitError classifies a failed transaction commit. A stale base snapshot
// surfaces either as Glue's ConcurrentModificationException or as the
// engine's requirement-validation failure; the latter carries no sentinel
// error, only its "requirement failed" message prefix. Everything else is a
// transport failure.
func commitError(table string, err error) error {
	var conflict *gluetypes.ConcurrentModificationException
	if errors.As(err, &conflict) || strings.Contains(err.Error(), "requirement failed") {
		return &icereplaceerr.WriteConflictError{Table: table, Err: err}
	}
	return &icereplaceerr.TransportError{Op: "commit " + table, Err: err}
}

// Scan materializes the table's current snapshot.
func (t *Table) Scan(ctx context.Context) (arrow.Table, error) {
	at, err := t.tbl.Scan().ToArrowTable(ctx)
	if err != nil {
		return nil, &icereplaceerr.TransportError{Op: "scan table", Err: err}
	}
	return at, nil
}

// toIcebergSchema converts a record schema to the engine's form. Field IDs
// are assigned in declaration order starting at 1.
func toIcebergSchema(s record.Schema) (*iceberg.Schema, error) {
	recFields := s.Fields()
	fields := make([]iceberg.NestedField, 0, len(recFields))
	for i, f := range recFields {
		t, err := toIcebergType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields = append(fields, iceberg.NestedField{
			ID:       i + 1,
			Name:     f.Name,
			Type:     t,
			Required: f.Required,
		})
	}
	return iceberg.NewSchema(0, fields...), nil
}

func toIcebergType(t record.Type) (iceberg.Type, error) {
	switch t {
	case record.TypeString:
		return iceberg.PrimitiveTypes.String, nil
	case record.TypeInt32:
		return iceberg.PrimitiveTypes.Int32, nil
	case record.TypeInt64:
		return iceberg.PrimitiveTypes.Int64, nil
	case record.TypeFloat64:
		return iceberg.PrimitiveTypes.Float64, nil
	case record.TypeBool:
		return iceberg.PrimitiveTypes.Bool, nil
	case record.TypeTimestamp:
		return iceberg.PrimitiveTypes.TimestampTz, nil
	default:
		return nil, fmt.Errorf("no iceberg type for %s", t)
	}
}

// fromIcebergSchema converts the engine's schema back to record form.
func fromIcebergSchema(s *iceberg.Schema) (record.Schema, error) {
	fields := make([]record.Field, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		t, err := fromIcebergType(f.Type)
		if err != nil {
			return record.Schema{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields = append(fields, record.Field{Name: f.Name, Type: t, Required: f.Required})
	}
	return record.NewSchema(fields...)
}

func fromIcebergType(t iceberg.Type) (record.Type, error) {
	switch t {
	case iceberg.PrimitiveTypes.String:
		return record.TypeString, nil
	case iceberg.PrimitiveTypes.Int32:
		return record.TypeInt32, nil
	case iceberg.PrimitiveTypes.Int64:
		return record.TypeInt64, nil
	case iceberg.PrimitiveTypes.Float64:
		return record.TypeFloat64, nil
	case iceberg.PrimitiveTypes.Bool:
		return record.TypeBool, nil
	case iceberg.PrimitiveTypes.Timestamp, iceberg.PrimitiveTypes.TimestampTz:
		return record.TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unsupported iceberg type %s", t)
	}
}
