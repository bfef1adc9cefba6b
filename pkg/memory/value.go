// Package memory models the memory state of an executing C-like program
// as a sequence of immutable snapshots. Addresses are simulated integers;
// allocation and free are bookkeeping operations over a block table, not
// real memory management.
package memory

import (
	"fmt"
	"sort"
	"strings"
)

// ValueKind identifies the concrete variant stored in a Value
type ValueKind int

const (
	// KindInt is an integer payload
	KindInt ValueKind = iota
	// KindFloat is a floating-point payload
	KindFloat
	// KindString is a string payload
	KindString
	// KindStruct is a nested field-name to value mapping
	KindStruct
	// KindPointer is a pointer payload, possibly null
	KindPointer
)

// String returns the string representation of the ValueKind
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindStruct:
		return "Struct"
	case KindPointer:
		return "Pointer"
	default:
		return "Unknown"
	}
}

// Value is the dynamically-typed payload stored in a variable slot or heap
// block. The variant set is closed: integers, floats, strings, struct-like
// mappings, and pointers. No validation ties a value's shape to the
// declared type name of its holder.
type Value interface {
	// Kind reports which variant this value is
	Kind() ValueKind

	// Equal reports structural equality. Values of different kinds are
	// never equal.
	Equal(other Value) bool

	// Copy returns a deep copy that shares no mutable state with the
	// receiver
	Copy() Value

	// String renders the value for human-readable reports
	String() string
}

// IntValue is an integer payload
type IntValue int64

// FloatValue is a floating-point payload
type FloatValue float64

// StringValue is a string payload
type StringValue string

// StructValue is a struct-like payload mapping field names to values
type StructValue map[string]Value

// PointerValue is a pointer payload. A null pointer is a distinct state:
// its Address field is meaningless, not merely zero by convention.
type PointerValue struct {
	Address    uint64
	TargetType string
	Null       bool
}

// NewPointer returns a pointer to the given address
func NewPointer(address uint64, targetType string) PointerValue {
	return PointerValue{Address: address, TargetType: targetType}
}

// NullPointer returns a null pointer of the given target type
func NullPointer(targetType string) PointerValue {
	return PointerValue{TargetType: targetType, Null: true}
}

// Kind reports KindInt
func (v IntValue) Kind() ValueKind { return KindInt }

// Equal reports whether other is an equal integer value
func (v IntValue) Equal(other Value) bool {
	o, ok := other.(IntValue)
	return ok && o == v
}

// Copy returns the value itself; integers are immutable
func (v IntValue) Copy() Value { return v }

// String renders the integer
func (v IntValue) String() string { return fmt.Sprintf("%d", int64(v)) }

// Kind reports KindFloat
func (v FloatValue) Kind() ValueKind { return KindFloat }

// Equal reports whether other is an equal float value
func (v FloatValue) Equal(other Value) bool {
	o, ok := other.(FloatValue)
	return ok && o == v
}

// Copy returns the value itself; floats are immutable
func (v FloatValue) Copy() Value { return v }

// String renders the float
func (v FloatValue) String() string { return fmt.Sprintf("%g", float64(v)) }

// Kind reports KindString
func (v StringValue) Kind() ValueKind { return KindString }

// Equal reports whether other is an equal string value
func (v StringValue) Equal(other Value) bool {
	o, ok := other.(StringValue)
	return ok && o == v
}

// Copy returns the value itself; strings are immutable
func (v StringValue) Copy() Value { return v }

// String renders the string in quotes
func (v StringValue) String() string { return fmt.Sprintf("%q", string(v)) }

// Kind reports KindStruct
func (v StructValue) Kind() ValueKind { return KindStruct }

// Equal reports whether other is a struct value with the same fields and
// structurally equal field values
func (v StructValue) Equal(other Value) bool {
	o, ok := other.(StructValue)
	if !ok || len(o) != len(v) {
		return false
	}
	for name, field := range v {
		of, present := o[name]
		if !present || !valuesEqual(field, of) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the struct value
func (v StructValue) Copy() Value {
	out := make(StructValue, len(v))
	for name, field := range v {
		out[name] = copyValue(field)
	}
	return out
}

// String renders the fields in name order
func (v StructValue) String() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("{")
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, v[name])
	}
	sb.WriteString("}")
	return sb.String()
}

// Kind reports KindPointer
func (v PointerValue) Kind() ValueKind { return KindPointer }

// Equal reports pointer equality by address. Two null pointers are equal
// regardless of target type; a null pointer never equals a non-null one.
func (v PointerValue) Equal(other Value) bool {
	o, ok := other.(PointerValue)
	if !ok {
		return false
	}
	if v.Null || o.Null {
		return v.Null && o.Null
	}
	return v.Address == o.Address
}

// Copy returns the value itself; pointers have no mutable state
func (v PointerValue) Copy() Value { return v }

// String renders the pointer target or NULL
func (v PointerValue) String() string {
	if v.Null {
		return "NULL"
	}
	return fmt.Sprintf("-> 0x%x", v.Address)
}

// valuesEqual compares two possibly-nil values
func valuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// copyValue deep-copies a possibly-nil value
func copyValue(v Value) Value {
	if v == nil {
		return nil
	}
	return v.Copy()
}
