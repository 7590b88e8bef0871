package hadoop

// Iceberg table format v2 type definitions, limited to what an
// overwrite/scan cycle touches. See: https://iceberg.apache.org/spec/

// TableMetadata is the top-level Iceberg table metadata (format-version 2).
type TableMetadata struct {
	FormatVersion    int                `json:"format-version"`
	TableUUID        string             `json:"table-uuid"`
	Location         string             `json:"location"`
	LastSeqNumber    int64              `json:"last-sequence-number"`
	LastUpdatedMS    int64              `json:"last-updated-ms"`
	LastColumnID     int                `json:"last-column-id"`
	Schemas          []TableSchema      `json:"schemas"`
	CurrentSchemaID  int                `json:"current-schema-id"`
	PartitionSpecs   []PartitionSpec    `json:"partition-specs"`
	DefaultSpecID    int                `json:"default-spec-id"`
	LastPartitionID  int                `json:"last-partition-id"`
	CurrentSnapshot  int64              `json:"current-snapshot-id"`
	Snapshots        []Snapshot         `json:"snapshots"`
	SnapshotLog      []SnapshotLogEntry `json:"snapshot-log"`
	SortOrders       []SortOrder        `json:"sort-orders"`
	DefaultSortOrder int                `json:"default-sort-order-id"`
	Properties       map[string]string  `json:"properties,omitempty"`
}

// TableSchema defines the columns of an Iceberg table.
type TableSchema struct {
	SchemaID int          `json:"schema-id"`
	Fields   []TableField `json:"fields"`
}

// TableField is a single column in an Iceberg schema.
type TableField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "string", "int", "long", "double", "boolean", "timestamptz"
	Required bool   `json:"required"`
}

// PartitionSpec defines how data is partitioned. Replacement tables here are
// unpartitioned; an empty spec is still written for format compliance.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// PartitionField maps a source column to a partition transform.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// Snapshot records a point-in-time view of the table.
type Snapshot struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64             `json:"sequence-number"`
	TimestampMS      int64             `json:"timestamp-ms"`
	ManifestList     string            `json:"manifest-list"`
	Summary          map[string]string `json:"summary"`
	SchemaID         int               `json:"schema-id"`
}

// SnapshotLogEntry records when a snapshot was made current.
type SnapshotLogEntry struct {
	TimestampMS int64 `json:"timestamp-ms"`
	SnapshotID  int64 `json:"snapshot-id"`
}

// SortOrder defines how data is sorted within files.
type SortOrder struct {
	OrderID int         `json:"order-id"`
	Fields  []SortField `json:"fields"`
}

// SortField is a single sort column.
type SortField struct {
	SourceID  int    `json:"source-id"`
	Transform string `json:"transform"`
	Direction string `json:"direction"`
	NullOrder string `json:"null-order"`
}

// DataFile describes a single Parquet data file in the table.
type DataFile struct {
	ContentType     int           `json:"content"` // 0 = data
	FilePath        string        `json:"file-path"`
	FileFormat      string        `json:"file-format"` // "PARQUET"
	RecordCount     int64         `json:"record-count"`
	FileSizeBytes   int64         `json:"file-size-in-bytes"`
	ValueCounts     map[int]int64 `json:"value-counts,omitempty"`
	NullValueCounts map[int]int64 `json:"null-value-counts,omitempty"`
}

// Manifest entry status constants.
const (
	manifestEntryStatusExisting = 0
	manifestEntryStatusAdded    = 1
	manifestEntryStatusDeleted  = 2
)

// ManifestEntry is a row in a manifest file (Avro).
type ManifestEntry struct {
	Status     int
	SnapshotID int64
	DataFile   DataFile
}

// ManifestFile describes a manifest in the manifest list (Avro).
type ManifestFile struct {
	ManifestPath        string `avro:"manifest_path"`
	ManifestLength      int64  `avro:"manifest_length"`
	PartitionSpecID     int    `avro:"partition_spec_id"`
	ContentType         int    `avro:"content"` // 0 = data
	SequenceNumber      int64  `avro:"sequence_number"`
	MinSequenceNumber   int64  `avro:"min_sequence_number"`
	AddedSnapshotID     int64  `avro:"added_snapshot_id"`
	AddedDataFilesCount int    `avro:"added_data_files_count"`
	AddedRowsCount      int64  `avro:"added_rows_count"`
	ExistingDataFiles   int    `avro:"existing_data_files_count"`
	ExistingRowsCount   int64  `avro:"existing_rows_count"`
	DeletedDataFiles    int    `avro:"deleted_data_files_count"`
	DeletedRowsCount    int64  `avro:"deleted_rows_count"`
}
