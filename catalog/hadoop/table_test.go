package hadoop_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/florinutz/icereplace/catalog/hadoop"
	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
	"github.com/florinutz/icereplace/storage"
)

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

// replaceRows pushes a batch through Table.Replace directly.
func replaceRows(t *testing.T, tbl replacer.Table, batch record.Batch, schema record.Schema) replacer.Snapshot {
	t.Helper()
	rec := record.ToArrow(batch, schema, memory.DefaultAllocator)
	defer rec.Release()
	snap, err := tbl.Replace(context.Background(), rec)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	return snap
}

func scanRows(t *testing.T, tbl replacer.Table) []record.Record {
	t.Helper()
	at, err := tbl.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer at.Release()
	rows, err := record.FromArrowTable(at)
	if err != nil {
		t.Fatalf("FromArrowTable: %v", err)
	}
	return rows
}

func TestReplaceScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	schema := customerSchema()

	if err := cat.CreateTable(ctx, "myblognamespace", "customers", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := cat.LoadTable(ctx, "myblognamespace", "customers")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	first := replaceRows(t, tbl, donaldDaisy(), schema)
	if rows := scanRows(t, tbl); !record.SameRows(rows, donaldDaisy(), schema) {
		t.Fatalf("after first replace got %d rows: %v", len(rows), rows)
	}

	second := replaceRows(t, tbl, scrooge(), schema)
	if first == second {
		t.Fatalf("replace returned the same snapshot twice: %s", first)
	}
	if second.SequenceNumber <= first.SequenceNumber {
		t.Errorf("sequence number did not advance: %s then %s", first, second)
	}

	rows := scanRows(t, tbl)
	if !record.SameRows(rows, scrooge(), schema) {
		t.Fatalf("after overwrite got %v, want only Scrooge", rows)
	}
	for _, row := range rows {
		if row["c_first_name"] == "Donald" || row["c_first_name"] == "Daisy" {
			t.Fatalf("row from replaced snapshot survived: %v", row)
		}
	}
}

func TestScanEmptyTable(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	schema := customerSchema()

	if err := cat.CreateTable(ctx, "ns", "empty", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := cat.LoadTable(ctx, "ns", "empty")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	rows := scanRows(t, tbl)
	if len(rows) != 0 {
		t.Fatalf("scan of empty table returned %d rows", len(rows))
	}
}

func TestReplaceCommitConflict(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocal(t.TempDir())
	cat := hadoop.New("test", store)
	schema := customerSchema()

	if err := cat.CreateTable(ctx, "ns", "t", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := cat.LoadTable(ctx, "ns", "t")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	// Simulate a concurrent writer claiming the next metadata version.
	if err := store.Write(ctx, "ns/t/metadata/v2.metadata.json", []byte("{}")); err != nil {
		t.Fatalf("seed conflicting metadata: %v", err)
	}

	rec := record.ToArrow(scrooge(), schema, memory.DefaultAllocator)
	defer rec.Release()
	_, err = tbl.Replace(ctx, rec)
	var conflict *icereplaceerr.WriteConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Replace = %v, want WriteConflictError", err)
	}
	if !icereplaceerr.Retryable(err) {
		t.Error("write conflict should be retryable")
	}
}

func TestReplacerOverHadoopCatalog(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	schema := customerSchema()

	if err := cat.CreateTable(ctx, "myblognamespace", "customers", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := cat.LoadTable(ctx, "myblognamespace", "customers")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	r := replacer.New()
	if _, err := r.Overwrite(ctx, tbl, donaldDaisy(), schema); err != nil {
		t.Fatalf("first Overwrite: %v", err)
	}
	if _, err := r.Overwrite(ctx, tbl, scrooge(), schema); err != nil {
		t.Fatalf("second Overwrite: %v", err)
	}

	rows, err := r.ReadAll(ctx, tbl)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !record.SameRows(rows, scrooge(), schema) {
		t.Fatalf("ReadAll = %v, want only Scrooge", rows)
	}
}

// hintFailStore refuses version-hint writes while tripped and passes
// everything else through.
type hintFailStore struct {
	storage.Storage
	refuse bool
}

func (s *hintFailStore) Write(ctx context.Context, path string, data []byte) error {
	if s.refuse && strings.HasSuffix(path, "version-hint.text") {
		return errors.New("hint write refused")
	}
	return s.Storage.Write(ctx, path, data)
}

func TestReplaceReclaimsVersionAfterFailedHintWrite(t *testing.T) {
	ctx := context.Background()
	store := &hintFailStore{Storage: storage.NewLocal(t.TempDir())}
	cat := hadoop.New("test", store)
	schema := customerSchema()

	if err := cat.CreateTable(ctx, "ns", "customers", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := cat.LoadTable(ctx, "ns", "customers")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	replaceRows(t, tbl, donaldDaisy(), schema)

	store.refuse = true
	rec := record.ToArrow(scrooge(), schema, memory.DefaultAllocator)
	_, err = tbl.Replace(ctx, rec)
	rec.Release()
	var transport *icereplaceerr.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Replace with failing hint write: got %v, want TransportError", err)
	}

	// The failed attempt must release its claimed metadata version, or
	// every later commit reports a conflict against the orphaned file.
	store.refuse = false
	replaceRows(t, tbl, scrooge(), schema)

	rows := scanRows(t, tbl)
	if !record.SameRows(scrooge(), rows, schema) {
		t.Errorf("rows after recovery = %v, want %v", rows, scrooge())
	}
}
