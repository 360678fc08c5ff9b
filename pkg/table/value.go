// Package table is the shared key-value table the vision process and the
// robot controller talk through.
//
// A Store holds typed entries keyed by slash-separated paths. Views scope a
// Store to one sub-table. Store changes can be mirrored over a websocket,
// either by serving clients (Server) or by connecting to the robot (Client).
package table

import "slices"

// Type names the kind of value held by an entry.
type Type string

const (
	TypeBoolean     Type = "boolean"
	TypeDouble      Type = "double"
	TypeDoubleArray Type = "double[]"
	TypeString      Type = "string"
	TypeStringArray Type = "string[]"
)

// Value is a tagged union of the supported entry types.
type Value struct {
	Type    Type      `json:"type"`
	Bool    bool      `json:"bool,omitempty"`
	Double  float64   `json:"double,omitempty"`
	Doubles []float64 `json:"doubles,omitempty"`
	String  string    `json:"string,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// Boolean wraps a bool.
func Boolean(v bool) Value { return Value{Type: TypeBoolean, Bool: v} }

// Number wraps a float64.
func Number(v float64) Value { return Value{Type: TypeDouble, Double: v} }

// NumberArray wraps a copy of v.
func NumberArray(v []float64) Value {
	return Value{Type: TypeDoubleArray, Doubles: slices.Clone(v)}
}

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Type: TypeString, String: v} }

// StringArray wraps a copy of v.
func StringArray(v []string) Value {
	return Value{Type: TypeStringArray, Strings: slices.Clone(v)}
}

// Equal reports whether two values have the same type and contents.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeBoolean:
		return v.Bool == o.Bool
	case TypeDouble:
		return v.Double == o.Double
	case TypeDoubleArray:
		return slices.Equal(v.Doubles, o.Doubles)
	case TypeString:
		return v.String == o.String
	case TypeStringArray:
		return slices.Equal(v.Strings, o.Strings)
	}
	return false
}

// Valid reports whether the type tag is known.
func (v Value) Valid() bool {
	switch v.Type {
	case TypeBoolean, TypeDouble, TypeDoubleArray, TypeString, TypeStringArray:
		return true
	}
	return false
}

// Entry is a key and its value.
type Entry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Table is what the vision pipeline needs from the shared table.
type Table interface {
	// GetBoolean returns the boolean at key, or def if it is missing or not a boolean.
	GetBoolean(key string, def bool) bool

	// Put writes all entries as one atomic update.
	Put(entries ...Entry)
}
