package args

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/unbound-force/assay/internal/signature"
)

// MaxArrayLen bounds randomly generated arrays.
const MaxArrayLen = 50

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator produces uninformed random values for parameter specs.
// It is not safe for concurrent use.
type Generator struct {
	r *rand.Rand
}

// NewGenerator returns a generator seeded with seed. A zero seed is
// replaced with a time-based one.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Rand exposes the underlying source so callers share one stream.
func (g *Generator) Rand() *rand.Rand { return g.r }

// Between returns a uniform integer in [lo, hi].
func (g *Generator) Between(lo, hi int64) int64 {
	return lo + g.r.Int64N(hi-lo+1)
}

// Primitive returns a random value for tag.
func (g *Generator) Primitive(tag signature.Tag) Value {
	switch tag {
	case signature.Int:
		return Int{Tag: tag, V: g.Between(-10_000, 10_000)}
	case signature.Short:
		return Int{Tag: tag, V: g.Between(-1000, 1000)}
	case signature.Long:
		return Int{Tag: tag, V: g.Between(-100_000, 100_000)}
	case signature.Byte:
		return Int{Tag: tag, V: g.Between(-128, 127)}
	case signature.Boolean:
		return Bool{V: g.r.IntN(2) == 1}
	case signature.Char:
		return Char{V: g.Letter()}
	case signature.Float:
		return Float{Tag: tag, V: g.decimal(1000)}
	case signature.Double:
		return Float{Tag: tag, V: g.decimal(10_000)}
	}
	return Int{Tag: signature.Int}
}

// decimal returns a value in [-bound, bound] rounded to three places.
func (g *Generator) decimal(bound float64) float64 {
	v := (g.r.Float64()*2 - 1) * bound
	return math.Round(v*1000) / 1000
}

// Letter returns a random ASCII letter.
func (g *Generator) Letter() rune {
	return rune(letters[g.r.IntN(len(letters))])
}

// Array returns a random array of up to MaxArrayLen elements.
func (g *Generator) Array(elem signature.Tag) Array {
	n := g.r.IntN(MaxArrayLen + 1)
	items := make([]Value, n)
	for i := range items {
		items[i] = g.Primitive(elem)
	}
	return Array{Elem: elem, Items: items}
}

// Param returns a random value shaped like p, recursing into
// composite constructor parameters.
func (g *Generator) Param(p signature.Param) Value {
	switch p := p.(type) {
	case signature.Primitive:
		return g.Primitive(p.Tag)
	case signature.Array:
		return g.Array(p.Elem)
	case signature.Composite:
		fields := make([]Value, len(p.Ctor))
		for i, c := range p.Ctor {
			fields[i] = g.Param(c)
		}
		return Object{Class: p.Name, Fields: fields}
	}
	return nil
}

// Tuple returns a random argument tuple for params.
func (g *Generator) Tuple(params []signature.Param) Tuple {
	out := make(Tuple, len(params))
	for i, p := range params {
		out[i] = g.Param(p)
	}
	return out
}
