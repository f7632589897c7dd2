package oracle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/unbound-force/assay/internal/signature"
)

// ErrUnresolvedMethod is returned when a class and method name do not
// match any id in the index.
var ErrUnresolvedMethod = errors.New("unresolved method id")

// Index maps "Class.method" to the full method ids listed in a
// methods file, one id per line.
type Index struct {
	byName map[string][]signature.Method
}

// LoadIndex reads an index file.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening method index: %w", err)
	}
	defer f.Close()
	return ParseIndex(f)
}

// ParseIndex reads method ids from r. Blank lines and lines starting
// with '#' are skipped.
func ParseIndex(r io.Reader) (*Index, error) {
	ix := &Index{byName: make(map[string][]signature.Method)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		m, err := signature.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("method index line %d: %w", line, err)
		}
		key := m.Class + "." + m.Name
		ix.byName[key] = append(ix.byName[key], m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading method index: %w", err)
	}
	return ix, nil
}

// Len returns the number of indexed ids.
func (ix *Index) Len() int {
	n := 0
	for _, ms := range ix.byName {
		n += len(ms)
	}
	return n
}

// Resolve returns the method id for class and method. When the name is
// overloaded, arity selects the overload with that many parameters; a
// negative arity takes the first listed.
func (ix *Index) Resolve(class, method string, arity int) (signature.Method, error) {
	candidates := ix.byName[class+"."+method]
	for _, m := range candidates {
		if arity < 0 || len(m.Params) == arity {
			return m, nil
		}
	}
	return signature.Method{}, fmt.Errorf("%w: %s.%s/%d", ErrUnresolvedMethod, class, method, arity)
}
