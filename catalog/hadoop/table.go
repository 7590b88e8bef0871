package hadoop

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/florinutz/icereplace/icereplaceerr"
	"github.com/florinutz/icereplace/metrics"
	"github.com/florinutz/icereplace/record"
	"github.com/florinutz/icereplace/replacer"
	"github.com/florinutz/icereplace/storage"
)

// Table is a handle to one Iceberg table in the store. Replace commits a new
// snapshot whose manifest list references only the new data, so each commit
// fully supersedes the previous content.
type Table struct {
	name   string
	root   string
	store  storage.Storage
	logger *slog.Logger
	mem    memory.Allocator
}

var _ replacer.Table = (*Table)(nil)

func (t *Table) Name() string { return t.name }

// Schema returns the table's stored schema.
func (t *Table) Schema(ctx context.Context) (record.Schema, error) {
	meta, _, err := loadMetadata(ctx, t.store, t.root)
	if err != nil {
		return record.Schema{}, &icereplaceerr.TransportError{Op: "load table metadata", Err: err}
	}
	return currentSchema(meta)
}

// Replace writes data as a new Parquet file, wraps it in a fresh manifest
// and manifest list, and commits a new metadata version pointing at the new
// snapshot. The commit is rejected with a WriteConflictError if another
// writer has advanced the table since its state was read.
func (t *Table) Replace(ctx context.Context, data arrow.Record) (replacer.Snapshot, error) {
	meta, baseVersion, err := loadMetadata(ctx, t.store, t.root)
	if err != nil {
		return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "load table metadata", Err: err}
	}

	snapshotID := newSnapshotID()
	seqNum := meta.LastSeqNumber + 1
	rowCount := data.NumRows()

	parquetBytes, err := writeParquet(data, t.mem)
	if err != nil {
		return replacer.Snapshot{}, fmt.Errorf("encode data file: %w", err)
	}
	dataPath := path.Join(t.root, "data", uuid.New().String()+".parquet")
	if err := t.store.Write(ctx, dataPath, parquetBytes); err != nil {
		return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "write data file", Err: err}
	}
	metrics.DataFilesWritten.Inc()
	metrics.BytesWritten.Add(float64(len(parquetBytes)))

	schemaIdx := -1
	for i, s := range meta.Schemas {
		if s.SchemaID == meta.CurrentSchemaID {
			schemaIdx = i
		}
	}
	if schemaIdx < 0 {
		return replacer.Snapshot{}, fmt.Errorf("metadata has no schema with id %d", meta.CurrentSchemaID)
	}

	entry := ManifestEntry{
		Status:     manifestEntryStatusAdded,
		SnapshotID: snapshotID,
		DataFile: DataFile{
			ContentType:   0,
			FilePath:      dataPath,
			FileFormat:    "PARQUET",
			RecordCount:   rowCount,
			FileSizeBytes: int64(len(parquetBytes)),
		},
	}
	manifestBytes, err := writeManifest([]ManifestEntry{entry}, meta.Schemas[schemaIdx], seqNum, meta.DefaultSpecID)
	if err != nil {
		return replacer.Snapshot{}, fmt.Errorf("encode manifest: %w", err)
	}
	manifestPath := path.Join(t.root, "metadata", uuid.New().String()+"-m0.avro")
	if err := t.store.Write(ctx, manifestPath, manifestBytes); err != nil {
		return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "write manifest", Err: err}
	}

	// The manifest list holds only the new manifest: the previous snapshot's
	// data files are no longer reachable from the new snapshot.
	listBytes, err := writeManifestList([]ManifestFile{{
		ManifestPath:        manifestPath,
		ManifestLength:      int64(len(manifestBytes)),
		PartitionSpecID:     meta.DefaultSpecID,
		ContentType:         0,
		SequenceNumber:      seqNum,
		MinSequenceNumber:   seqNum,
		AddedSnapshotID:     snapshotID,
		AddedDataFilesCount: 1,
		AddedRowsCount:      rowCount,
	}})
	if err != nil {
		return replacer.Snapshot{}, fmt.Errorf("encode manifest list: %w", err)
	}
	listPath := path.Join(t.root, "metadata",
		fmt.Sprintf("snap-%d-1-%s.avro", snapshotID, uuid.New().String()))
	if err := t.store.Write(ctx, listPath, listBytes); err != nil {
		return replacer.Snapshot{}, &icereplaceerr.TransportError{Op: "write manifest list", Err: err}
	}

	now := time.Now().UnixMilli()
	snap := Snapshot{
		SnapshotID:     snapshotID,
		SequenceNumber: seqNum,
		TimestampMS:    now,
		ManifestList:   listPath,
		SchemaID:       meta.CurrentSchemaID,
		Summary: map[string]string{
			"operation":        "overwrite",
			"added-data-files": "1",
			"added-records":    strconv.FormatInt(rowCount, 10),
			"total-data-files": "1",
			"total-records":    strconv.FormatInt(rowCount, 10),
		},
	}
	if meta.CurrentSnapshot > 0 {
		parent := meta.CurrentSnapshot
		snap.ParentSnapshotID = &parent
	}
	meta.Snapshots = append(meta.Snapshots, snap)
	meta.SnapshotLog = append(meta.SnapshotLog, SnapshotLogEntry{TimestampMS: now, SnapshotID: snapshotID})
	meta.CurrentSnapshot = snapshotID
	meta.LastSeqNumber = seqNum
	meta.LastUpdatedMS = now

	if err := t.commit(ctx, meta, baseVersion); err != nil {
		return replacer.Snapshot{}, err
	}

	t.logger.Debug("committed snapshot",
		"table", t.name,
		"snapshot_id", snapshotID,
		"sequence_number", seqNum,
		"rows", rowCount)
	return replacer.Snapshot{ID: snapshotID, SequenceNumber: seqNum}, nil
}

// commit writes the next metadata version and advances the version hint.
// The next version file acts as a coarse commit marker: if it already exists,
// another writer won the race and this attempt must restart from fresh state.
func (t *Table) commit(ctx context.Context, meta *TableMetadata, baseVersion int) error {
	newVersion := baseVersion + 1
	metaPath := metadataFile(t.root, newVersion)

	taken, err := t.store.Exists(ctx, metaPath)
	if err != nil {
		return &icereplaceerr.TransportError{Op: "check metadata version", Err: err}
	}
	if taken {
		metrics.CommitConflicts.Inc()
		return &icereplaceerr.WriteConflictError{
			Table: t.name,
			Err:   fmt.Errorf("metadata version %d already committed", newVersion),
		}
	}

	data, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	if err := t.store.Write(ctx, metaPath, data); err != nil {
		return &icereplaceerr.TransportError{Op: "write metadata", Err: err}
	}
	hint := path.Join(t.root, "metadata", versionHintFile)
	if err := t.store.Write(ctx, hint, []byte(strconv.Itoa(newVersion))); err != nil {
		// Without the hint update the version file would keep this slot
		// claimed and wedge every later commit, so reclaim it best-effort.
		if derr := t.store.Delete(ctx, metaPath); derr != nil {
			t.logger.Warn("orphaned metadata version after failed hint write",
				"table", t.name,
				"version", newVersion,
				"error", derr)
		}
		return &icereplaceerr.TransportError{Op: "write version hint", Err: err}
	}
	return nil
}

// Scan reads every data file reachable from the current snapshot and
// assembles them into a single Arrow table. Data files are fetched
// concurrently and reassembled in manifest order.
func (t *Table) Scan(ctx context.Context) (arrow.Table, error) {
	meta, _, err := loadMetadata(ctx, t.store, t.root)
	if err != nil {
		return nil, &icereplaceerr.TransportError{Op: "load table metadata", Err: err}
	}

	schema, err := currentSchema(meta)
	if err != nil {
		return nil, err
	}

	if meta.CurrentSnapshot <= 0 {
		return emptyTable(schema, t.mem), nil
	}
	snap := findSnapshot(meta, meta.CurrentSnapshot)
	if snap == nil {
		return nil, fmt.Errorf("current snapshot %d not in metadata", meta.CurrentSnapshot)
	}

	listBytes, err := t.store.Read(ctx, snap.ManifestList)
	if err != nil {
		return nil, &icereplaceerr.TransportError{Op: "read manifest list", Err: err}
	}
	manifests, err := readManifestList(listBytes)
	if err != nil {
		return nil, err
	}

	var dataPaths []string
	for _, mf := range manifests {
		manifestBytes, err := t.store.Read(ctx, mf.ManifestPath)
		if err != nil {
			return nil, &icereplaceerr.TransportError{Op: "read manifest", Err: err}
		}
		entries, err := readManifest(manifestBytes)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Status == manifestEntryStatusDeleted {
				continue
			}
			dataPaths = append(dataPaths, entry.DataFile.FilePath)
		}
	}
	if len(dataPaths) == 0 {
		return emptyTable(schema, t.mem), nil
	}

	tables := make([]arrow.Table, len(dataPaths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range dataPaths {
		g.Go(func() error {
			data, err := t.store.Read(gctx, p)
			if err != nil {
				return &icereplaceerr.TransportError{Op: "read data file", Err: err}
			}
			tbl, err := readParquet(gctx, data, t.mem)
			if err != nil {
				return fmt.Errorf("decode %s: %w", p, err)
			}
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, tbl := range tables {
			if tbl != nil {
				tbl.Release()
			}
		}
		return nil, err
	}

	return concatTables(tables), nil
}

// emptyTable builds a zero-row Arrow table with the given schema.
func emptyTable(schema record.Schema, mem memory.Allocator) arrow.Table {
	arrowSchema := record.ToArrowSchema(schema)
	b := array.NewRecordBuilder(mem, arrowSchema)
	defer b.Release()
	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(arrowSchema, []arrow.Record{rec})
}

// concatTables merges per-file tables into one, releasing the inputs.
func concatTables(tables []arrow.Table) arrow.Table {
	if len(tables) == 1 {
		return tables[0]
	}
	schema := tables[0].Schema()
	var recs []arrow.Record
	for _, tbl := range tables {
		tr := array.NewTableReader(tbl, 1024)
		for tr.Next() {
			rec := tr.Record()
			rec.Retain()
			recs = append(recs, rec)
		}
		tr.Release()
		tbl.Release()
	}
	out := array.NewTableFromRecords(schema, recs)
	for _, rec := range recs {
		rec.Release()
	}
	return out
}
