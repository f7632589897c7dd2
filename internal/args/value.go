// Package args models concrete method arguments: the value sum type,
// the oracle's textual argument grammar, serialized size estimates and
// random generation from parameter specs.
package args

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/unbound-force/assay/internal/signature"
)

// Value is one concrete argument. The implementations are Int, Float,
// Bool, Char, Array and Object.
type Value interface {
	isValue()
}

// Int is an integral value of tag I, S, B or J.
type Int struct {
	Tag signature.Tag
	V   int64
}

// Float is a value of tag F or D.
type Float struct {
	Tag signature.Tag
	V   float64
}

// Bool is a Z value.
type Bool struct {
	V bool
}

// Char is a C value.
type Char struct {
	V rune
}

// CharOf narrows n to a 16-bit char. Values in the surrogate range
// have no rune of their own and become 'a'.
func CharOf(n int64) Char {
	r := rune(Wrap(signature.Char, n))
	if !utf8.ValidRune(r) {
		r = 'a'
	}
	return Char{V: r}
}

// Array is a one-dimensional primitive array.
type Array struct {
	Elem  signature.Tag
	Items []Value
}

// Object is a composite value built by calling the class constructor
// with Fields.
type Object struct {
	Class  string
	Fields []Value
}

func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Char) isValue()   {}
func (Array) isValue()  {}
func (Object) isValue() {}

// Tuple is the ordered argument list of one invocation.
type Tuple []Value

// Format renders v in the oracle's argument grammar.
func Format(v Value) string {
	switch v := v.(type) {
	case Int:
		return strconv.FormatInt(v.V, 10)
	case Float:
		s := strconv.FormatFloat(v.V, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case Bool:
		if v.V {
			return "true"
		}
		return "false"
	case Char:
		return "'" + string(v.V) + "'"
	case Array:
		return "[" + v.Elem.String() + ":" + join(v.Items) + "]"
	case Object:
		return "new " + v.Class + "(" + join(v.Fields) + ")"
	}
	return ""
}

// String renders the tuple as "(v1,v2,...)".
func (t Tuple) String() string {
	return "(" + join(t) + ")"
}

func join(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Format(v)
	}
	return strings.Join(parts, ",")
}

// Equal reports whether a and b render identically.
func Equal(a, b Value) bool {
	return Format(a) == Format(b)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch v := v.(type) {
	case Array:
		return Array{Elem: v.Elem, Items: cloneAll(v.Items)}
	case Object:
		return Object{Class: v.Class, Fields: cloneAll(v.Fields)}
	}
	return v
}

// Clone returns a deep copy of the tuple.
func (t Tuple) Clone() Tuple {
	return Tuple(cloneAll(t))
}

func cloneAll(vs []Value) []Value {
	if vs == nil {
		return nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Clone(v)
	}
	return out
}

// floatWidth is the fixed serialized width of a float.
const floatWidth = 8

// Size estimates the number of bytes v takes when serialized.
func Size(v Value) int {
	switch v := v.(type) {
	case Int:
		return len(strconv.FormatInt(v.V, 10))
	case Float:
		return floatWidth
	case Bool:
		return 1
	case Char:
		if n := utf8.RuneLen(v.V); n > 0 {
			return n
		}
		return utf8.RuneLen(utf8.RuneError)
	case Array:
		return bracketed(v.Items)
	case Object:
		return bracketed(v.Fields)
	}
	return 0
}

// Size estimates the serialized size of the whole tuple.
func (t Tuple) Size() int {
	return bracketed(t)
}

func bracketed(vs []Value) int {
	size := 2
	for i, v := range vs {
		if i > 0 {
			size++
		}
		size += Size(v)
	}
	return size
}

// Wrap reduces n into the range of tag with two's complement
// wrap-around, the way the stack machine narrows integers.
func Wrap(tag signature.Tag, n int64) int64 {
	switch tag {
	case signature.Byte:
		return int64(int8(n))
	case signature.Short:
		return int64(int16(n))
	case signature.Int:
		return int64(int32(n))
	case signature.Char:
		return int64(uint16(n))
	}
	return n
}
