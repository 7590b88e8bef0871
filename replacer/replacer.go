// Package replacer implements the replace-and-verify cycle at the heart of
// icereplace: validate a batch against a declared schema, encode it as a
// single columnar record, issue one atomic replace against the table, and
// read the resulting snapshot back.
//
// The table-format engine stays behind the Table interface; the replacer
// adds conformance checking, error classification, bounded retry for
// transient failures, and metrics. It holds no state between calls.
package replacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/internal/backoff"
	"github.com/florinutz/icereplace/metrics"
	"github.com/florinutz/icereplace/record"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 8 * time.Second
)

// Snapshot identifies a committed table state. Comparable with ==.
type Snapshot struct {
	ID             int64
	SequenceNumber int64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("snapshot %d (seq %d)", s.ID, s.SequenceNumber)
}

// Table is the engine-side handle for one table. Implementations commit a
// replace atomically: a concurrent reader sees either the previous snapshot
// or the new one, never a mix.
type Table interface {
	// Name returns the namespace-qualified table name, for logs and errors.
	Name() string

	// Schema returns the table's stored schema.
	Schema(ctx context.Context) (record.Schema, error)

	// Replace atomically replaces the table's entire content with the rows
	// of data, producing a new snapshot. A concurrent-modification rejection
	// surfaces as *icereplaceerr.WriteConflictError.
	Replace(ctx context.Context, data arrow.Record) (Snapshot, error)

	// Scan materializes the table's current snapshot as one Arrow table.
	// The caller releases it.
	Scan(ctx context.Context) (arrow.Table, error)
}

// Replacer performs overwrite and read-back operations against Tables.
type Replacer struct {
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a Replacer.
type Option func(*Replacer)

// WithMaxAttempts bounds the number of replace attempts (first try included).
func WithMaxAttempts(n int) Option {
	return func(r *Replacer) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry delay range.
func WithBackoff(base, cap time.Duration) Option {
	return func(r *Replacer) {
		if base > 0 {
			r.backoffBase = base
		}
		if cap > 0 {
			r.backoffCap = cap
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Replacer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer enables OpenTelemetry spans around overwrite and scan.
func WithTracer(t trace.Tracer) Option {
	return func(r *Replacer) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a Replacer.
func New(opts ...Option) *Replacer {
	r := &Replacer{
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("icereplace"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Overwrite atomically replaces the table's entire content with batch.
//
// The batch must conform to schema, and schema must equal the table's stored
// schema; either violation fails with SchemaMismatchError before any data is
// written, leaving the table untouched. Write conflicts and transport
// failures are retried with full-jitter backoff up to the attempt budget;
// schema mismatches are never retried. A context deadline expiring during
// the engine call surfaces as TransportError.
func (r *Replacer) Overwrite(ctx context.Context, tbl Table, batch record.Batch, schema record.Schema) (Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "icereplace.Overwrite")
	defer span.End()

	start := time.Now()
	snap, err := r.overwrite(ctx, tbl, batch, schema)
	metrics.OverwriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Overwrites.WithLabelValues("error").Inc()
		return Snapshot{}, err
	}

	metrics.Overwrites.WithLabelValues("ok").Inc()
	metrics.RowsWritten.Add(float64(len(batch)))
	r.logger.Info("table overwritten",
		"table", tbl.Name(),
		"rows", len(batch),
		"snapshot", snap.ID,
	)
	return snap, nil
}

func (r *Replacer) overwrite(ctx context.Context, tbl Table, batch record.Batch, schema record.Schema) (Snapshot, error) {
	stored, err := tbl.Schema(ctx)
	if err != nil {
		return Snapshot{}, classify(err, "load table schema")
	}
	if !stored.Equal(schema) {
		return Snapshot{}, &icereplaceerr.SchemaMismatchError{
			Table:  tbl.Name(),
			Reason: fmt.Sprintf("declared %s does not match stored %s", schema, stored),
		}
	}
	if err := record.Conform(batch, schema); err != nil {
		var mismatch *icereplaceerr.SchemaMismatchError
		if errors.As(err, &mismatch) && mismatch.Table == "" {
			mismatch.Table = tbl.Name()
		}
		return Snapshot{}, err
	}

	data := record.ToArrow(batch, schema, nil)
	defer data.Release()

	for attempt := 0; ; attempt++ {
		snap, err := tbl.Replace(ctx, data)
		if err == nil {
			return snap, nil
		}

		err = classify(err, "replace table content")
		if !icereplaceerr.Retryable(err) || attempt+1 >= r.maxAttempts {
			return Snapshot{}, err
		}

		delay := backoff.Delay(attempt, r.backoffBase, r.backoffCap)
		metrics.OverwriteRetries.Inc()
		r.logger.Warn("replace failed, retrying",
			"table", tbl.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return Snapshot{}, &icereplaceerr.TransportError{Op: "replace table content", Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
}

// ReadAll materializes the table's current snapshot as in-memory records.
// The result reflects a single consistent snapshot; issued after a
// successful Overwrite it observes the overwritten state. Failures surface
// as ReadError.
func (r *Replacer) ReadAll(ctx context.Context, tbl Table) ([]record.Record, error) {
	ctx, span := r.tracer.Start(ctx, "icereplace.ReadAll")
	defer span.End()

	start := time.Now()
	rows, err := r.readAll(ctx, tbl)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Scans.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.Scans.WithLabelValues("ok").Inc()
	metrics.RowsRead.Add(float64(len(rows)))
	r.logger.Info("table scanned", "table", tbl.Name(), "rows", len(rows))
	return rows, nil
}

func (r *Replacer) readAll(ctx context.Context, tbl Table) ([]record.Record, error) {
	data, err := tbl.Scan(ctx)
	if err != nil {
		var read *icereplaceerr.ReadError
		if errors.As(err, &read) {
			return nil, err
		}
		return nil, &icereplaceerr.ReadError{Table: tbl.Name(), Err: err}
	}
	defer data.Release()

	rows, err := record.FromArrowTable(data)
	if err != nil {
		return nil, &icereplaceerr.ReadError{Table: tbl.Name(), Err: err}
	}
	return rows, nil
}

// classify maps untyped engine failures into the error taxonomy. Typed
// errors pass through; context expiry becomes a transport failure.
func classify(err error, op string) error {
	var (
		conflict  *icereplaceerr.WriteConflictError
		transport *icereplaceerr.TransportError
		mismatch  *icereplaceerr.SchemaMismatchError
		notFound  *icereplaceerr.TableNotFoundError
		read      *icereplaceerr.ReadError
	)
	switch {
	case errors.As(err, &conflict),
		errors.As(err, &transport),
		errors.As(err, &mismatch),
		errors.As(err, &notFound),
		errors.As(err, &read):
		return err
	default:
		return &icereplaceerr.TransportError{Op: op, Err: err}
	}
}
