package hadoop

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// newTableMetadata creates initial Iceberg v2 table metadata for an empty,
// unpartitioned table.
func newTableMetadata(location string, schema TableSchema) *TableMetadata {
	now := time.Now().UnixMilli()
	return &TableMetadata{
		FormatVersion:    2,
		TableUUID:        uuid.New().String(),
		Location:         location,
		LastSeqNumber:    0,
		LastUpdatedMS:    now,
		LastColumnID:     lastFieldID(schema),
		Schemas:          []TableSchema{schema},
		CurrentSchemaID:  schema.SchemaID,
		PartitionSpecs:   []PartitionSpec{{SpecID: 0, Fields: []PartitionField{}}},
		DefaultSpecID:    0,
		LastPartitionID:  999, // Iceberg reserves 1000+ for partition fields
		CurrentSnapshot:  -1,
		Snapshots:        []Snapshot{},
		SnapshotLog:      []SnapshotLogEntry{},
		SortOrders:       []SortOrder{{OrderID: 0, Fields: []SortField{}}},
		DefaultSortOrder: 0,
		Properties:       map[string]string{},
	}
}

func marshalMetadata(meta *TableMetadata) ([]byte, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (*TableMetadata, error) {
	var meta TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// newSnapshotID produces a random positive int64.
func newSnapshotID() int64 {
	return rand.Int64N(1<<62) + 1
}

// findSnapshot returns the snapshot with the given ID, or nil.
func findSnapshot(meta *TableMetadata, id int64) *Snapshot {
	for i := range meta.Snapshots {
		if meta.Snapshots[i].SnapshotID == id {
			return &meta.Snapshots[i]
		}
	}
	return nil
}
