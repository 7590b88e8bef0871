package record

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ToArrowSchema converts a schema to its Arrow form. Arrow is the columnar
// currency handed to the table-format engine.
func ToArrowSchema(s Schema) *arrow.Schema {
	fields := make([]arrow.Field, 0, s.Len())
	for _, f := range s.fields {
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: !f.Required,
		})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t Type) arrow.DataType {
	switch t {
	case TypeInt32:
		return arrow.PrimitiveTypes.Int32
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// FromArrowSchema converts an Arrow schema back to a record schema.
// Unsupported Arrow types are rejected.
func FromArrowSchema(s *arrow.Schema) (Schema, error) {
	fields := make([]Field, 0, s.NumFields())
	for _, f := range s.Fields() {
		t, err := fromArrowType(f.Type)
		if err != nil {
			return Schema{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields = append(fields, Field{Name: f.Name, Type: t, Required: !f.Nullable})
	}
	return NewSchema(fields...)
}

func fromArrowType(dt arrow.DataType) (Type, error) {
	switch t := dt.(type) {
	case *arrow.StringType:
		return TypeString, nil
	case *arrow.Int32Type:
		return TypeInt32, nil
	case *arrow.Int64Type:
		return TypeInt64, nil
	case *arrow.Float64Type:
		return TypeFloat64, nil
	case *arrow.BooleanType:
		return TypeBool, nil
	case *arrow.TimestampType:
		return TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unsupported arrow type %s", t)
	}
}

// ToArrow encodes a conforming batch as a single Arrow record using the
// given schema. The caller owns the returned record and must Release it.
// The batch is expected to have passed Conform; a non-conforming value is a
// programming error and panics inside the builders.
func ToArrow(batch Batch, schema Schema, mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	bldr := array.NewRecordBuilder(mem, ToArrowSchema(schema))
	defer bldr.Release()

	for _, rec := range batch {
		for i, f := range schema.fields {
			appendValue(bldr.Field(i), f.Type, rec[f.Name])
		}
	}
	return bldr.NewRecord()
}

func appendValue(b array.Builder, t Type, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch t {
	case TypeString:
		b.(*array.StringBuilder).Append(v.(string))
	case TypeInt32:
		b.(*array.Int32Builder).Append(toInt32(v))
	case TypeInt64:
		b.(*array.Int64Builder).Append(toInt64(v))
	case TypeFloat64:
		b.(*array.Float64Builder).Append(v.(float64))
	case TypeBool:
		b.(*array.BooleanBuilder).Append(v.(bool))
	case TypeTimestamp:
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	}
}

func toInt32(v any) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	}
	panic(fmt.Sprintf("not an int32 value: %T", v))
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	panic(fmt.Sprintf("not an int64 value: %T", v))
}

// FromArrowTable materializes a full Arrow table as in-memory records in row
// order. The table is not released.
func FromArrowTable(t arrow.Table) ([]Record, error) {
	schema, err := FromArrowSchema(t.Schema())
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, t.NumRows())
	rdr := array.NewTableReader(t, 1024)
	defer rdr.Release()
	for rdr.Next() {
		rows, err := FromArrowRecord(rdr.Record(), schema)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// FromArrowRecord decodes one Arrow record batch into records. The record is
// not released.
func FromArrowRecord(rec arrow.Record, schema Schema) ([]Record, error) {
	n := int(rec.NumRows())
	cols := rec.Columns()
	if len(cols) != schema.Len() {
		return nil, fmt.Errorf("record has %d columns, schema declares %d", len(cols), schema.Len())
	}

	out := make([]Record, n)
	for i := range out {
		out[i] = make(Record, schema.Len())
	}
	for ci, f := range schema.fields {
		if err := decodeColumn(cols[ci], f, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeColumn(col arrow.Array, f Field, out []Record) error {
	for i := range out {
		if col.IsNull(i) {
			out[i][f.Name] = nil
			continue
		}
		switch a := col.(type) {
		case *array.String:
			out[i][f.Name] = a.Value(i)
		case *array.Int32:
			out[i][f.Name] = a.Value(i)
		case *array.Int64:
			out[i][f.Name] = a.Value(i)
		case *array.Float64:
			out[i][f.Name] = a.Value(i)
		case *array.Boolean:
			out[i][f.Name] = a.Value(i)
		case *array.Timestamp:
			out[i][f.Name] = time.UnixMicro(int64(a.Value(i))).UTC()
		default:
			return fmt.Errorf("column %q: unsupported array type %T", f.Name, col)
		}
	}
	return nil
}
