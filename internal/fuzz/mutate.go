package fuzz

import (
	"strings"

	"github.com/unbound-force/assay/internal/args"
)

// Family is a group of mutation operators.
type Family int

// Mutation families.
const (
	// Deterministic applies small local edits: bit flips, small
	// deltas, boundary constants, char flips and boolean AND.
	Deterministic Family = iota

	// Havoc applies structural edits: array append, drop, duplicate
	// and reverse, and large numeric changes.
	Havoc
)

func (f Family) String() string {
	if f == Havoc {
		return "havoc"
	}
	return "deterministic"
}

// maxHavocItems stops array duplication from growing without bound.
const maxHavocItems = 1 << 10

const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var boundaries = []int64{-1, 0, 1, 128, -128}

// Mutator applies random mutations drawn from one generator stream.
type Mutator struct {
	gen *args.Generator
}

// NewMutator returns a mutator that draws from gen.
func NewMutator(gen *args.Generator) *Mutator {
	return &Mutator{gen: gen}
}

// Mutate returns a mutated deep copy of t. One family is chosen for
// the whole tuple and applied to every position; composite arguments
// are mutated field by field.
func (m *Mutator) Mutate(t args.Tuple) args.Tuple {
	f := Deterministic
	if m.gen.Rand().IntN(2) == 1 {
		f = Havoc
	}
	return m.MutateWith(f, t)
}

// MutateWith is Mutate with a fixed family.
func (m *Mutator) MutateWith(f Family, t args.Tuple) args.Tuple {
	out := t.Clone()
	for i, v := range out {
		if obj, ok := v.(args.Object); ok {
			for j, field := range obj.Fields {
				obj.Fields[j] = m.apply(f, field)
			}
			continue
		}
		out[i] = m.apply(f, v)
	}
	return out
}

func (m *Mutator) apply(f Family, v args.Value) args.Value {
	if f == Havoc {
		return m.havoc(v)
	}
	return m.deterministic(v)
}

func (m *Mutator) deterministic(v args.Value) args.Value {
	r := m.gen.Rand()
	switch v := v.(type) {
	case args.Array:
		for i, item := range v.Items {
			v.Items[i] = m.deterministic(item)
		}
		return v
	case args.Bool:
		return args.Bool{V: v.V && r.IntN(2) == 1}
	case args.Char:
		c := v.V ^ rune(1)<<r.IntN(7)
		if !strings.ContainsRune(safeChars, c) {
			c = rune(safeChars[r.IntN(len(safeChars))])
		}
		return args.Char{V: c}
	case args.Int:
		switch r.IntN(3) {
		case 0:
			v.V ^= 1 << r.IntN(8)
		case 1:
			v.V += m.gen.Between(-10, 10)
		default:
			v.V = boundaries[r.IntN(len(boundaries))]
		}
		v.V = args.Wrap(v.Tag, v.V)
		return v
	case args.Float:
		switch r.IntN(3) {
		case 0:
			v.V *= v.V
		case 1:
			v.V += float64(m.gen.Between(-10, 10))
		default:
			v.V = float64(boundaries[r.IntN(len(boundaries))])
		}
		return v
	}
	return v
}

func (m *Mutator) havoc(v args.Value) args.Value {
	r := m.gen.Rand()
	switch v := v.(type) {
	case args.Array:
		switch r.IntN(4) {
		case 0:
			v.Items = append(v.Items, m.gen.Primitive(v.Elem))
		case 1:
			if len(v.Items) > 0 {
				v.Items = v.Items[:len(v.Items)-1]
			}
		case 2:
			if len(v.Items) <= maxHavocItems/2 {
				dup := args.Clone(v).(args.Array)
				v.Items = append(v.Items, dup.Items...)
			}
		default:
			for i, j := 0, len(v.Items)-1; i < j; i, j = i+1, j-1 {
				v.Items[i], v.Items[j] = v.Items[j], v.Items[i]
			}
		}
		return v
	case args.Bool:
		return args.Bool{V: !v.V}
	case args.Char:
		return args.Char{V: rune(m.gen.Between(32, 126))}
	case args.Int:
		switch r.IntN(3) {
		case 0:
			v.V += m.gen.Between(-100, 100)
		case 1:
			v.V *= 2
		default:
			v.V /= 2
		}
		v.V = args.Wrap(v.Tag, v.V)
		return v
	case args.Float:
		switch r.IntN(3) {
		case 0:
			v.V += float64(m.gen.Between(-100, 100))
		case 1:
			v.V *= 2
		default:
			v.V /= 2
		}
		return v
	}
	return v
}
