package sim

import "fmt"

// TypeTag names the semantic type of a Value. It is a stable string (rather
// than a Go reflect.Type) precisely so that determinism survives process
// restarts and cross-platform runs: reflect.Type identity is not guaranteed
// stable, a string literal is.
type TypeTag string

// The supported semantic types for Store values and Event payloads.
const (
	TypeBool   TypeTag = "bool"
	TypeInt    TypeTag = "int"
	TypeFloat  TypeTag = "float"
	TypeString TypeTag = "string"
	TypeOpaque TypeTag = "opaque"
)

// Value is the type-erased, transferable typed cell carried by Events and
// stored by the Store. It is a tagged sum over the supported primitives plus
// an Opaque arm for user-declared blob types. The engine never inspects a
// Value beyond its Tag.
type Value struct {
	tag TypeTag

	boolVal   bool
	intVal    int64
	floatVal  float64
	stringVal string
	opaqueTag string
	bytesVal  []byte
}

// Tag returns the semantic type of the value.
func (v Value) Tag() TypeTag {
	return v.tag
}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value {
	return Value{tag: TypeBool, boolVal: b}
}

// IntValue constructs a signed-integer Value.
func IntValue(i int64) Value {
	return Value{tag: TypeInt, intVal: i}
}

// FloatValue constructs a floating-point Value.
func FloatValue(f float64) Value {
	return Value{tag: TypeFloat, floatVal: f}
}

// StringValue constructs a string Value.
func StringValue(s string) Value {
	return Value{tag: TypeString, stringVal: s}
}

// OpaqueValue constructs an opaque blob Value tagged with a stable,
// user-declared type name. Two opaque values are only type-compatible (for
// the Store's first-write-fixes-type rule) if their opaqueTag matches.
func OpaqueValue(typeTag string, data []byte) Value {
	cp := make([]byte, len(data))
	copy(cp, data)

	return Value{tag: TypeOpaque, opaqueTag: typeTag, bytesVal: cp}
}

// Bool returns the boolean payload and whether the value actually holds one.
func (v Value) Bool() (bool, bool) {
	return v.boolVal, v.tag == TypeBool
}

// Int returns the integer payload and whether the value actually holds one.
func (v Value) Int() (int64, bool) {
	return v.intVal, v.tag == TypeInt
}

// Float returns the float payload and whether the value actually holds one.
func (v Value) Float() (float64, bool) {
	return v.floatVal, v.tag == TypeFloat
}

// String returns the string payload and whether the value actually holds
// one. It does not stringify other variants - use Describe for that.
func (v Value) String() (string, bool) {
	return v.stringVal, v.tag == TypeString
}

// Bytes returns the opaque payload, its declared type tag, and whether the
// value actually holds an opaque blob.
func (v Value) Bytes() ([]byte, string, bool) {
	return v.bytesVal, v.opaqueTag, v.tag == TypeOpaque
}

// fingerprint is the string the Store persists per key to enforce that a
// key's type is fixed after first assignment, without keeping a whole
// Value around just to remember an Opaque arm's declared tag.
func (v Value) fingerprint() string {
	if v.tag == TypeOpaque {
		return string(v.tag) + ":" + v.opaqueTag
	}

	return string(v.tag)
}

// Describe renders the value for logs and introspection payloads.
func (v Value) Describe() string {
	switch v.tag {
	case TypeBool:
		return fmt.Sprintf("bool(%v)", v.boolVal)
	case TypeInt:
		return fmt.Sprintf("int(%d)", v.intVal)
	case TypeFloat:
		return fmt.Sprintf("float(%g)", v.floatVal)
	case TypeString:
		return fmt.Sprintf("string(%q)", v.stringVal)
	case TypeOpaque:
		return fmt.Sprintf("opaque(%s, %d bytes)", v.opaqueTag, len(v.bytesVal))
	default:
		return "unset"
	}
}
