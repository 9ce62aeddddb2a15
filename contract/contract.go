package contract

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Payload is the dynamic representation of step inputs and outputs as
// they cross the engine boundary. Typed pipeline inputs are converted to
// a Payload before submission and validated against the step's schema.
type Payload map[string]any

// FieldType is the semantic type of a schema field.
type FieldType string

// Field types understood by schema validation.
const (
	String    FieldType = "string"
	Int       FieldType = "int"
	Float     FieldType = "float"
	Bool      FieldType = "bool"
	Object    FieldType = "object"
	List      FieldType = "list"
	Timestamp FieldType = "timestamp"
	Any       FieldType = "any"
)

// Schema maps field names to their semantic types. All listed fields are
// required; fields not listed are permitted and ignored.
type Schema map[string]FieldType

// Contract identifies a unit of work by name together with the structural
// schemas of its input and output. Immutable once registered.
type Contract struct {
	Name   string
	Input  Schema
	Output Schema
}

// New creates a Contract. Name must be non-empty.
func New(name string, input, output Schema) Contract {
	return Contract{Name: name, Input: input, Output: output}
}

// SchemaError reports payload fields that violate a schema. It is a
// definition error: fatal to the run, never retried.
type SchemaError struct {
	Contract string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("contract %q: field %q: %s", e.Contract, e.Field, e.Reason)
}

// Validate checks that payload conforms to the schema. It reports the
// first violation in deterministic (sorted field) order so that replayed
// validation produces identical errors.
func (s Schema) Validate(contractName string, payload Payload) error {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		want := s[field]
		value, ok := payload[field]
		if !ok {
			return &SchemaError{Contract: contractName, Field: field, Reason: "missing"}
		}
		if err := checkType(value, want); err != nil {
			return &SchemaError{
				Contract: contractName,
				Field:    field,
				Reason:   err.Error(),
			}
		}
	}
	return nil
}

// checkType verifies a single value against a field type. Numeric checks
// accept both native Go ints and JSON-decoded float64 values.
func checkType(value any, want FieldType) error {
	if want == Any {
		return nil
	}
	if value == nil {
		return fmt.Errorf("is null, want %s", want)
	}

	switch want {
	case String:
		if _, ok := value.(string); !ok {
			return mismatch(value, want)
		}
	case Int:
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("is non-integral number, want %s", want)
			}
		default:
			return mismatch(value, want)
		}
	case Float:
		switch value.(type) {
		case float32, float64, int, int64:
		default:
			return mismatch(value, want)
		}
	case Bool:
		if _, ok := value.(bool); !ok {
			return mismatch(value, want)
		}
	case Object:
		switch value.(type) {
		case map[string]any, Payload:
		default:
			return mismatch(value, want)
		}
	case List:
		if !isList(value) {
			return mismatch(value, want)
		}
	case Timestamp:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Errorf("is not an RFC 3339 timestamp, want %s", want)
			}
		default:
			return mismatch(value, want)
		}
	default:
		return fmt.Errorf("unknown field type %q", want)
	}
	return nil
}

func isList(value any) bool {
	switch value.(type) {
	case []any, []string, []int, []float64, []map[string]any:
		return true
	}
	return false
}

func mismatch(value any, want FieldType) error {
	return fmt.Errorf("is %s, want %s", goTypeName(value), want)
}

func goTypeName(value any) string {
	name := fmt.Sprintf("%T", value)
	return strings.TrimPrefix(name, "contract.")
}
