// Package signature parses method ids of the form
// "<fully.qualified.Class>.<method>:(<params>)<return>" into typed
// parameter specs.
package signature

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for method ids or descriptors that do not
// follow the expected grammar.
var ErrMalformed = errors.New("malformed method signature")

// Tag is a one-letter primitive type tag.
type Tag byte

// Primitive tags.
const (
	Int     Tag = 'I'
	Short   Tag = 'S'
	Byte    Tag = 'B'
	Boolean Tag = 'Z'
	Char    Tag = 'C'
	Float   Tag = 'F'
	Double  Tag = 'D'
	Long    Tag = 'J'
)

// Valid reports whether t is a known primitive tag.
func (t Tag) Valid() bool {
	switch t {
	case Int, Short, Byte, Boolean, Char, Float, Double, Long:
		return true
	}
	return false
}

// Integral reports whether values of t are whole numbers. Chars are
// integral on the stack machine.
func (t Tag) Integral() bool {
	switch t {
	case Int, Short, Byte, Char, Long:
		return true
	}
	return false
}

// Wide reports whether t occupies two local variable slots.
func (t Tag) Wide() bool {
	return t == Long || t == Double
}

func (t Tag) String() string { return string(t) }

// Param is a parameter type spec. The implementations are Primitive,
// Array and Composite.
type Param interface {
	isParam()
	String() string
}

// Primitive is a scalar parameter.
type Primitive struct {
	Tag Tag
}

// Array is a one-dimensional array of primitives.
type Array struct {
	Elem Tag
}

// Composite is an object parameter whose constructor signature is
// inlined in the descriptor.
type Composite struct {
	// Name is the class name, with '/' separators as written.
	Name string

	// Ctor lists the constructor parameter specs.
	Ctor []Param
}

func (Primitive) isParam() {}
func (Array) isParam()     {}
func (Composite) isParam() {}

func (p Primitive) String() string { return p.Tag.String() }
func (a Array) String() string     { return "[" + a.Elem.String() }
func (c Composite) String() string {
	var sb strings.Builder
	sb.WriteString("L" + c.Name + "<init>")
	for _, p := range c.Ctor {
		sb.WriteString(p.String())
	}
	sb.WriteString(";")
	return sb.String()
}

// IsObj reports whether values of p are array or composite shaped.
func IsObj(p Param) bool {
	switch p.(type) {
	case Array, Composite:
		return true
	}
	return false
}

// Method is a parsed method id. It is immutable once parsed.
type Method struct {
	Class  string
	Name   string
	Params []Param

	// Return is the raw return descriptor, e.g. "V" or "I".
	Return string

	raw string
}

// ID returns the method id the signature was parsed from.
func (m Method) ID() string { return m.raw }

// Descriptor returns the parameter descriptor without parentheses.
func (m Method) Descriptor() string {
	var sb strings.Builder
	for _, p := range m.Params {
		sb.WriteString(p.String())
	}
	return sb.String()
}

// Parse parses a full method id.
func Parse(id string) (Method, error) {
	colon := strings.LastIndex(id, ":")
	if colon < 0 {
		return Method{}, fmt.Errorf("%w: %q: missing ':'", ErrMalformed, id)
	}
	qualified, desc := id[:colon], id[colon+1:]

	dot := strings.LastIndex(qualified, ".")
	if dot <= 0 || dot == len(qualified)-1 {
		return Method{}, fmt.Errorf("%w: %q: expected Class.method", ErrMalformed, id)
	}

	open := strings.Index(desc, "(")
	closing := strings.LastIndex(desc, ")")
	if open != 0 || closing < 0 {
		return Method{}, fmt.Errorf("%w: %q: expected (params)return", ErrMalformed, id)
	}

	params, err := ParseParams(desc[open+1 : closing])
	if err != nil {
		return Method{}, fmt.Errorf("%q: %w", id, err)
	}

	return Method{
		Class:  qualified[:dot],
		Name:   qualified[dot+1:],
		Params: params,
		Return: desc[closing+1:],
		raw:    id,
	}, nil
}

// ParseParams parses a parameter descriptor such as
// "I[CLjpamb/cases/PositiveInteger<init>I;".
func ParseParams(desc string) ([]Param, error) {
	var out []Param
	for i := 0; i < len(desc); {
		p, n, err := parseOne(desc[i:])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		i += n
	}
	return out, nil
}

func parseOne(s string) (Param, int, error) {
	switch c := s[0]; c {
	case '[':
		if len(s) < 2 || !Tag(s[1]).Valid() {
			return nil, 0, fmt.Errorf("%w: array of unsupported type in %q", ErrMalformed, s)
		}
		return Array{Elem: Tag(s[1])}, 2, nil
	case 'L':
		semi := strings.IndexByte(s, ';')
		init := strings.Index(s, "<init>")
		if semi < 0 || init < 0 || init > semi {
			return nil, 0, fmt.Errorf("%w: composite without <init> in %q", ErrMalformed, s)
		}
		ctor, err := ParseParams(s[init+len("<init>") : semi])
		if err != nil {
			return nil, 0, err
		}
		for _, p := range ctor {
			if _, nested := p.(Composite); nested {
				return nil, 0, fmt.Errorf("%w: nested composite in %q", ErrMalformed, s)
			}
		}
		return Composite{Name: s[1:init], Ctor: ctor}, semi + 1, nil
	default:
		if !Tag(c).Valid() {
			return nil, 0, fmt.Errorf("%w: unknown type tag %q", ErrMalformed, c)
		}
		return Primitive{Tag: Tag(c)}, 1, nil
	}
}
