package hadoop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hamba/avro/v2/ocf"
)

// Avro schema for Iceberg manifest entries (format v2), limited to the
// fields an overwrite/scan cycle needs.
const manifestEntryAvroSchema = `{
	"type": "record",
	"name": "manifest_entry",
	"fields": [
		{"name": "status", "type": "int"},
		{"name": "snapshot_id", "type": ["null", "long"], "default": null},
		{"name": "sequence_number", "type": ["null", "long"], "default": null},
		{"name": "file_sequence_number", "type": ["null", "long"], "default": null},
		{"name": "data_file", "type": {
			"type": "record",
			"name": "r2",
			"fields": [
				{"name": "content", "type": "int"},
				{"name": "file_path", "type": "string"},
				{"name": "file_format", "type": "string"},
				{"name": "partition", "type": {"type": "record", "name": "r102", "fields": []}},
				{"name": "record_count", "type": "long"},
				{"name": "file_size_in_bytes", "type": "long"},
				{"name": "value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k119_v120",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "null_value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k121_v122",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null}
			]
		}}
	]
}`

// manifestEntryAvro is the Avro-serializable form of a manifest entry.
type manifestEntryAvro struct {
	Status             int                  `avro:"status"`
	SnapshotID         *int64               `avro:"snapshot_id"`
	SequenceNumber     *int64               `avro:"sequence_number"`
	FileSequenceNumber *int64               `avro:"file_sequence_number"`
	DataFile           manifestDataFileAvro `avro:"data_file"`
}

type manifestDataFileAvro struct {
	Content         int         `avro:"content"`
	FilePath        string      `avro:"file_path"`
	FileFormat      string      `avro:"file_format"`
	Partition       struct{}    `avro:"partition"`
	RecordCount     int64       `avro:"record_count"`
	FileSizeBytes   int64       `avro:"file_size_in_bytes"`
	ValueCounts     []intLongKV `avro:"value_counts"`
	NullValueCounts []intLongKV `avro:"null_value_counts"`
}

type intLongKV struct {
	Key   int   `avro:"key"`
	Value int64 `avro:"value"`
}

// writeManifest serializes manifest entries as an Avro OCF file.
func writeManifest(entries []ManifestEntry, schema TableSchema, seqNum int64, specID int) ([]byte, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestEntryAvroSchema, &buf,
		ocf.WithMetadata(map[string][]byte{
			"schema":            schemaJSON,
			"schema-id":         encodeIntBytes(schema.SchemaID),
			"partition-spec":    []byte("[]"),
			"partition-spec-id": encodeIntBytes(specID),
			"format-version":    []byte("2"),
			"content":           []byte("data"),
		}),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest encoder: %w", err)
	}

	for _, entry := range entries {
		snapID := entry.SnapshotID
		seq := seqNum
		av := manifestEntryAvro{
			Status:             entry.Status,
			SnapshotID:         &snapID,
			SequenceNumber:     &seq,
			FileSequenceNumber: &seq,
			DataFile: manifestDataFileAvro{
				Content:         entry.DataFile.ContentType,
				FilePath:        entry.DataFile.FilePath,
				FileFormat:      entry.DataFile.FileFormat,
				RecordCount:     entry.DataFile.RecordCount,
				FileSizeBytes:   entry.DataFile.FileSizeBytes,
				ValueCounts:     mapToIntLongKV(entry.DataFile.ValueCounts),
				NullValueCounts: mapToIntLongKV(entry.DataFile.NullValueCounts),
			},
		}
		if err := enc.Encode(av); err != nil {
			return nil, fmt.Errorf("encode manifest entry: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close manifest encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// readManifest decodes manifest entries from an Avro OCF file.
func readManifest(data []byte) ([]ManifestEntry, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open manifest decoder: %w", err)
	}

	var entries []ManifestEntry
	for dec.HasNext() {
		var av manifestEntryAvro
		if err := dec.Decode(&av); err != nil {
			return nil, fmt.Errorf("decode manifest entry: %w", err)
		}
		entry := ManifestEntry{
			Status: av.Status,
			DataFile: DataFile{
				ContentType:     av.DataFile.Content,
				FilePath:        av.DataFile.FilePath,
				FileFormat:      av.DataFile.FileFormat,
				RecordCount:     av.DataFile.RecordCount,
				FileSizeBytes:   av.DataFile.FileSizeBytes,
				ValueCounts:     intLongKVToMap(av.DataFile.ValueCounts),
				NullValueCounts: intLongKVToMap(av.DataFile.NullValueCounts),
			},
		}
		if av.SnapshotID != nil {
			entry.SnapshotID = *av.SnapshotID
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapToIntLongKV(m map[int]int64) []intLongKV {
	if len(m) == 0 {
		return nil
	}
	out := make([]intLongKV, 0, len(m))
	for k, v := range m {
		out = append(out, intLongKV{Key: k, Value: v})
	}
	return out
}

func intLongKVToMap(kvs []intLongKV) map[int]int64 {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[int]int64, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func encodeIntBytes(v int) []byte {
	return []byte(strconv.Itoa(v))
}

// Avro schema for the manifest list (format v2).
const manifestListAvroSchema = `{
	"type": "record",
	"name": "manifest_file",
	"fields": [
		{"name": "manifest_path", "type": "string"},
		{"name": "manifest_length", "type": "long"},
		{"name": "partition_spec_id", "type": "int"},
		{"name": "content", "type": "int"},
		{"name": "sequence_number", "type": "long"},
		{"name": "min_sequence_number", "type": "long"},
		{"name": "added_snapshot_id", "type": "long"},
		{"name": "added_data_files_count", "type": "int"},
		{"name": "added_rows_count", "type": "long"},
		{"name": "existing_data_files_count", "type": "int"},
		{"name": "existing_rows_count", "type": "long"},
		{"name": "deleted_data_files_count", "type": "int"},
		{"name": "deleted_rows_count", "type": "long"}
	]
}`

// writeManifestList serializes manifest file entries as an Avro OCF file.
func writeManifestList(manifests []ManifestFile) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestListAvroSchema, &buf,
		ocf.WithMetadata(map[string][]byte{
			"format-version": []byte("2"),
		}),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest list encoder: %w", err)
	}

	for _, mf := range manifests {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encode manifest list entry: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close manifest list encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// readManifestList decodes manifest file entries from an Avro OCF file.
func readManifestList(data []byte) ([]ManifestFile, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open manifest list decoder: %w", err)
	}

	var out []ManifestFile
	for dec.HasNext() {
		var mf ManifestFile
		if err := dec.Decode(&mf); err != nil {
			return nil, fmt.Errorf("decode manifest list entry: %w", err)
		}
		out = append(out, mf)
	}
	return out, nil
}
