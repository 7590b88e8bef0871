package replacer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
)

// memTable is an in-memory Table that snapshots batches of rows.
type memTable struct {
	mu       sync.Mutex
	schema   record.Schema
	rows     []record.Record
	snap     replacer.Snapshot
	replaces int
	scans    int

	// failures to inject before a replace succeeds
	failWith  []error
	schemaErr error
	scanErr   error
}

func newMemTable(schema record.Schema) *memTable {
	return &memTable{schema: schema}
}

func (m *memTable) Name() string { return "myblognamespace.customers" }

func (m *memTable) Schema(context.Context) (record.Schema, error) {
	if m.schemaErr != nil {
		return record.Schema{}, m.schemaErr
	}
	return m.schema, nil
}

func (m *memTable) Replace(_ context.Context, data arrow.Record) (replacer.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	if len(m.failWith) > 0 {
		err := m.failWith[0]
		m.failWith = m.failWith[1:]
		return replacer.Snapshot{}, err
	}
	rows, err := record.FromArrowRecord(data, m.schema)
	if err != nil {
		return replacer.Snapshot{}, err
	}
	m.rows = rows
	m.snap = replacer.Snapshot{ID: m.snap.ID + 1, SequenceNumber: m.snap.SequenceNumber + 1}
	return m.snap, nil
}

func (m *memTable) Scan(context.Context) (arrow.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	rec := record.ToArrow(m.rows, m.schema, nil)
	defer rec.Release()
	return array.NewTableFromRecords(record.ToArrowSchema(m.schema), []arrow.Record{rec}), nil
}

func customerSchema() record.Schema {
	return record.MustSchema(
		record.Field{Name: "c_salutation", Type: record.TypeString},
		record.Field{Name: "c_preferred_cust_flag", Type: record.TypeString},
		record.Field{Name: "c_first_sales_date_sk", Type: record.TypeInt32},
		record.Field{Name: "c_customer_sk", Type: record.TypeInt32},
		record.Field{Name: "c_first_name", Type: record.TypeString},
		record.Field{Name: "c_email_address", Type: record.TypeString},
	)
}

func donaldDaisy() record.Batch {
	return record.Batch{
		{
			"c_salutation":          "Mr",
			"c_preferred_cust_flag": "Y",
			"c_first_sales_date_sk": int32(2452737),
			"c_customer_sk":         int32(1235),
			"c_first_name":          "Donald",
			"c_email_address":       "donald@email.com",
		},
		{
			"c_salutation":          "Mrs",
			"c_preferred_cust_flag": "N",
			"c_first_sales_date_sk": int32(2452738),
			"c_customer_sk":         int32(1236),
			"c_first_name":          "Daisy",
			"c_email_address":       "daisy@email.com",
		},
	}
}

func scrooge() record.Batch {
	return record.Batch{{
		"c_salutation":          "Dr",
		"c_preferred_cust_flag": "Y",
		"c_first_sales_date_sk": int32(2452739),
		"c_customer_sk":         int32(1237),
		"c_first_name":          "Scrooge",
		"c_email_address":       "scrooge@email.com",
	}}
}

func TestOverwriteThenReadAll(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	r := replacer.New()

	// First load: Donald and Daisy.
	if _, err := r.Overwrite(ctx, tbl, donaldDaisy(), schema); err != nil {
		t.Fatalf("first Overwrite: %v", err)
	}

	// Overwrite with the single Scrooge row.
	snap, err := r.Overwrite(ctx, tbl, scrooge(), schema)
	if err != nil {
		t.Fatalf("second Overwrite: %v", err)
	}
	if snap == (replacer.Snapshot{}) {
		t.Fatal("Overwrite returned zero snapshot")
	}

	rows, err := r.ReadAll(ctx, tbl)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !record.SameRows(scrooge(), rows, schema) {
		t.Errorf("read back %v, want exactly the Scrooge row", rows)
	}
	for _, row := range rows {
		if row["c_first_name"] == "Donald" || row["c_first_name"] == "Daisy" {
			t.Errorf("row from the previous batch survived the overwrite: %v", row)
		}
	}
}

func TestOverwrite_SnapshotsDiffer(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	r := replacer.New()

	s1, err := r.Overwrite(ctx, tbl, donaldDaisy(), schema)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := r.Overwrite(ctx, tbl, scrooge(), schema)
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Errorf("consecutive overwrites produced the same snapshot %v", s1)
	}
}

func TestOverwrite_NonConformingBatchNeverReachesEngine(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	r := replacer.New()

	if _, err := r.Overwrite(ctx, tbl, donaldDaisy(), schema); err != nil {
		t.Fatal(err)
	}
	replacesBefore := tbl.replaces

	bad := scrooge()
	bad[0]["c_unexpected"] = "surprise"
	_, err := r.Overwrite(ctx, tbl, bad, schema)

	var mismatch *icereplaceerr.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
	if mismatch.Field != "c_unexpected" {
		t.Errorf("error names field %q, want c_unexpected", mismatch.Field)
	}
	if tbl.replaces != replacesBefore {
		t.Error("engine Replace was called for a non-conforming batch")
	}

	// Prior content unchanged.
	rows, err := r.ReadAll(ctx, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !record.SameRows(donaldDaisy(), rows, schema) {
		t.Errorf("table content changed after failed overwrite: %v", rows)
	}
}

func TestOverwrite_StoredSchemaDrift(t *testing.T) {
	ctx := context.Background()
	tbl := newMemTable(customerSchema())
	r := replacer.New()

	declared := record.MustSchema(
		record.Field{Name: "c_customer_sk", Type: record.TypeInt32},
	)
	_, err := r.Overwrite(ctx, tbl, record.Batch{{"c_customer_sk": int32(1)}}, declared)
	var mismatch *icereplaceerr.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
	if tbl.replaces != 0 {
		t.Error("engine Replace was called despite schema drift")
	}
}

func TestOverwrite_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	tbl.failWith = []error{
		&icereplaceerr.WriteConflictError{Table: tbl.Name(), Err: errors.New("version moved")},
		&icereplaceerr.TransportError{Op: "commit", Err: errors.New("connection reset")},
	}
	r := replacer.New(
		replacer.WithMaxAttempts(3),
		replacer.WithBackoff(time.Millisecond, 2*time.Millisecond),
	)

	if _, err := r.Overwrite(ctx, tbl, scrooge(), schema); err != nil {
		t.Fatalf("Overwrite should have succeeded on the third attempt: %v", err)
	}
	if tbl.replaces != 3 {
		t.Errorf("replaces = %d, want 3", tbl.replaces)
	}
}

func TestOverwrite_RetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	tbl.failWith = []error{
		&icereplaceerr.WriteConflictError{Table: tbl.Name(), Err: errors.New("v1")},
		&icereplaceerr.WriteConflictError{Table: tbl.Name(), Err: errors.New("v2")},
	}
	r := replacer.New(
		replacer.WithMaxAttempts(2),
		replacer.WithBackoff(time.Millisecond, 2*time.Millisecond),
	)

	_, err := r.Overwrite(ctx, tbl, scrooge(), schema)
	var conflict *icereplaceerr.WriteConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want WriteConflictError", err)
	}
	if tbl.replaces != 2 {
		t.Errorf("replaces = %d, want 2", tbl.replaces)
	}
}

func TestOverwrite_UntypedEngineErrorBecomesTransport(t *testing.T) {
	ctx := context.Background()
	schema := customerSchema()
	tbl := newMemTable(schema)
	tbl.failWith = []error{
		errors.New("tcp: broken pipe"),
		errors.New("tcp: broken pipe"),
		errors.New("tcp: broken pipe"),
	}
	r := replacer.New(
		replacer.WithMaxAttempts(3),
		replacer.WithBackoff(time.Millisecond, 2*time.Millisecond),
	)

	_, err := r.Overwrite(ctx, tbl, scrooge(), schema)
	var transport *icereplaceerr.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("got %v, want TransportError", err)
	}
	if tbl.replaces != 3 {
		t.Errorf("replaces = %d, want 3 (transport errors are transient)", tbl.replaces)
	}
}

func TestOverwrite_DeadlineSurfacesAsTransport(t *testing.T) {
	schema := customerSchema()
	tbl := newMemTable(schema)
	tbl.failWith = []error{
		&icereplaceerr.WriteConflictError{Table: tbl.Name(), Err: errors.New("v1")},
	}
	r := replacer.New(
		replacer.WithMaxAttempts(5),
		replacer.WithBackoff(time.Hour, time.Hour), // backoff longer than the deadline
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Overwrite(ctx, tbl, scrooge(), schema)
	var transport *icereplaceerr.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("got %v, want TransportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("transport error should wrap the deadline: %v", err)
	}
}

func TestReadAll_WrapsFailures(t *testing.T) {
	ctx := context.Background()
	tbl := newMemTable(customerSchema())
	tbl.scanErr = errors.New("manifest list unreadable")
	r := replacer.New()

	_, err := r.ReadAll(ctx, tbl)
	var read *icereplaceerr.ReadError
	if !errors.As(err, &read) {
		t.Fatalf("got %v, want ReadError", err)
	}
}

func TestReadAll_EmptyTable(t *testing.T) {
	ctx := context.Background()
	tbl := newMemTable(customerSchema())
	r := replacer.New()

	rows, err := r.ReadAll(ctx, tbl)
	if err != nil {
		t.Fatalf("ReadAll on empty table: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}
