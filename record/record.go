// Package record defines the value types that flow through a table
// replacement: a typed schema, individual records, and the batch that is the
// atomic unit of an overwrite. All three are constructed once and never
// mutated afterwards.
package record

import (
	"fmt"
	"time"

	"github.com/florinutz/icereplace/icereplaceerr"
)

// Type is a primitive field type.
type Type int

const (
	TypeString Type = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeBool
	// TypeTimestamp is a microsecond-precision instant in UTC.
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

func (t Type) valid() bool {
	return t >= TypeString && t <= TypeTimestamp
}

// Field is a single named, typed column. A required field rejects nulls.
type Field struct {
	Name     string
	Type     Type
	Required bool
}

// Schema is an ordered sequence of fields. Field names are unique.
type Schema struct {
	fields []Field
}

// NewSchema builds a schema from the given fields. The field order is
// preserved and becomes the column order of any batch written with it.
func NewSchema(fields ...Field) (Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("schema field with empty name")
		}
		if !f.Type.valid() {
			return Schema{}, fmt.Errorf("schema field %q has unknown type %d", f.Name, int(f.Type))
		}
		if _, dup := seen[f.Name]; dup {
			return Schema{}, fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	s := Schema{fields: make([]Field, len(fields))}
	copy(s.fields, fields)
	return s, nil
}

// MustSchema is NewSchema that panics on error, for fixed compile-time schemas.
func MustSchema(fields ...Field) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the schema's fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether two schemas declare the same fields, in the same
// order, with the same types and nullability.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if f != other.fields[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	out := "schema<"
	for i, f := range s.fields {
		if i > 0 {
			out += ", "
		}
		out += f.Name + ":" + f.Type.String()
		if f.Required {
			out += "!"
		}
	}
	return out + ">"
}

// Record maps field names to values. A nil value is a null.
type Record map[string]any

// Batch is an ordered sequence of records sharing one schema.
type Batch []Record

// Conform verifies that every record in the batch supplies exactly the
// fields declared in the schema, with type-compatible values or permitted
// nulls. The first violation is reported as a SchemaMismatchError.
func Conform(batch Batch, schema Schema) error {
	for i, rec := range batch {
		if err := conformRecord(rec, schema, i); err != nil {
			return err
		}
	}
	return nil
}

func conformRecord(rec Record, schema Schema, idx int) error {
	for name := range rec {
		if _, ok := schema.Field(name); !ok {
			return &icereplaceerr.SchemaMismatchError{
				Field:  name,
				Reason: fmt.Sprintf("record %d carries a field not declared in the schema", idx),
			}
		}
	}
	for _, f := range schema.fields {
		v, present := rec[f.Name]
		if !present {
			return &icereplaceerr.SchemaMismatchError{
				Field:  f.Name,
				Reason: fmt.Sprintf("record %d is missing a declared field", idx),
			}
		}
		if v == nil {
			if f.Required {
				return &icereplaceerr.SchemaMismatchError{
					Field:  f.Name,
					Reason: fmt.Sprintf("record %d has null for a required field", idx),
				}
			}
			continue
		}
		if !typeCompatible(f.Type, v) {
			return &icereplaceerr.SchemaMismatchError{
				Field:  f.Name,
				Reason: fmt.Sprintf("record %d has %T where %s is declared", idx, v, f.Type),
			}
		}
	}
	return nil
}

// typeCompatible reports whether v's dynamic type conforms to t. Integer
// widths are strict except that untyped-constant-friendly int is accepted for
// the integer types when it fits.
func typeCompatible(t Type, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt32:
		switch n := v.(type) {
		case int32:
			return true
		case int:
			return n >= -1<<31 && n < 1<<31
		}
		return false
	case TypeInt64:
		switch v.(type) {
		case int64, int:
			return true
		}
		return false
	case TypeFloat64:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	default:
		return false
	}
}

// Equal reports whether two records hold the same values for the fields of
// the given schema. Int values are compared by widening, timestamps by
// instant.
func (r Record) Equal(other Record, schema Schema) bool {
	for _, f := range schema.fields {
		if !valueEqual(r[f.Name], other[f.Name]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return normalizeInt(a) == normalizeInt(b)
}

func normalizeInt(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		return v
	}
}

// SameRows reports whether two batches hold the same records for the schema,
// independent of order. Duplicate rows must appear the same number of times
// on both sides.
func SameRows(a, b Batch, schema Schema) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, ra := range a {
		for j, rb := range b {
			if !matched[j] && ra.Equal(rb, schema) {
				matched[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}
