package hadoop

import (
	"fmt"

	"github.com/florinutz/icereplace/record"
)

// toTableSchema converts a record schema to Iceberg metadata form. Field IDs
// are assigned in declaration order starting at 1.
func toTableSchema(s record.Schema, schemaID int) (TableSchema, error) {
	fields := s.Fields()
	out := TableSchema{SchemaID: schemaID, Fields: make([]TableField, 0, len(fields))}
	for i, f := range fields {
		t, err := icebergTypeName(f.Type)
		if err != nil {
			return TableSchema{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out.Fields = append(out.Fields, TableField{
			ID:       i + 1,
			Name:     f.Name,
			Type:     t,
			Required: f.Required,
		})
	}
	return out, nil
}

func icebergTypeName(t record.Type) (string, error) {
	switch t {
	case record.TypeString:
		return "string", nil
	case record.TypeInt32:
		return "int", nil
	case record.TypeInt64:
		return "long", nil
	case record.TypeFloat64:
		return "double", nil
	case record.TypeBool:
		return "boolean", nil
	case record.TypeTimestamp:
		return "timestamptz", nil
	default:
		return "", fmt.Errorf("no iceberg type for %s", t)
	}
}

// fromTableSchema converts Iceberg metadata schema back to a record schema.
func fromTableSchema(s TableSchema) (record.Schema, error) {
	fields := make([]record.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		t, err := recordType(f.Type)
		if err != nil {
			return record.Schema{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields = append(fields, record.Field{Name: f.Name, Type: t, Required: f.Required})
	}
	return record.NewSchema(fields...)
}

func recordType(name string) (record.Type, error) {
	switch name {
	case "string":
		return record.TypeString, nil
	case "int":
		return record.TypeInt32, nil
	case "long":
		return record.TypeInt64, nil
	case "double":
		return record.TypeFloat64, nil
	case "boolean":
		return record.TypeBool, nil
	case "timestamptz", "timestamp":
		return record.TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unsupported iceberg type %q", name)
	}
}

// currentSchema returns the metadata's current schema in record form.
func currentSchema(meta *TableMetadata) (record.Schema, error) {
	for _, s := range meta.Schemas {
		if s.SchemaID == meta.CurrentSchemaID {
			return fromTableSchema(s)
		}
	}
	return record.Schema{}, fmt.Errorf("metadata has no schema with id %d", meta.CurrentSchemaID)
}

func lastFieldID(s TableSchema) int {
	max := 0
	for _, f := range s.Fields {
		if f.ID > max {
			max = f.ID
		}
	}
	return max
}
