// Package loader reads a suite manifest describing the classes,
// methods and assertions to analyze, resolves method ids against the
// method index, and loads decoded bytecode on demand.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/unbound-force/assay/internal/bytecode"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/taxonomy"
)

// Manifest is the on-disk suite description.
type Manifest struct {
	// BytecodeDir holds one decoded class file per class, at
	// <dir>/<package path>/<Class>.json.
	BytecodeDir string `yaml:"bytecode_dir"`

	// MethodsFile lists the known method ids. Overrides the
	// configured methods file when set.
	MethodsFile string `yaml:"methods_file"`

	// StateChanging names methods whose calls mutate program state.
	StateChanging []string `yaml:"state_changing"`

	Classes []ClassSpec `yaml:"classes"`
}

// ClassSpec describes one class of the suite.
type ClassSpec struct {
	Name     string       `yaml:"name"`
	Location string       `yaml:"location"`
	Methods  []MethodSpec `yaml:"methods"`
}

// MethodSpec describes one method. ID may be omitted and is then
// resolved from the method index by name and parameter count.
type MethodSpec struct {
	Name       string          `yaml:"name"`
	ID         string          `yaml:"id"`
	Parameters []string        `yaml:"parameters"`
	Assertions []AssertionSpec `yaml:"assertions"`
}

// AssertionSpec is one assert statement as extracted from source.
type AssertionSpec struct {
	Expression string `yaml:"expression"`
	Line       int    `yaml:"line"`
	Column     int    `yaml:"column"`
	EndLine    int    `yaml:"end_line"`
	EndColumn  int    `yaml:"end_column"`
}

// Options configures Load.
type Options struct {
	// MethodsFile is used when the manifest does not name one.
	// Relative paths are taken from the manifest's directory.
	MethodsFile string

	Logger *log.Logger
}

// Suite is a loaded manifest.
type Suite struct {
	// Dir is the manifest's directory.
	Dir string

	Manifest Manifest

	// Methods holds one result per resolved method, with assertions
	// unclassified.
	Methods []taxonomy.MethodResult

	// Skipped lists methods whose id could not be resolved.
	Skipped []string

	index   *oracle.Index
	classes map[string]*bytecode.Class
	state   map[string]bool
}

// Load reads the manifest at path. Methods whose id cannot be
// resolved are logged and skipped; a missing or malformed manifest,
// method index or method id is an error.
func Load(path string, opts Options) (*Suite, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", path, err)
	}
	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("manifest %q lists no classes", path)
	}

	s := &Suite{
		Dir:      filepath.Dir(path),
		Manifest: m,
		classes:  make(map[string]*bytecode.Class),
		state:    make(map[string]bool),
	}
	for _, name := range m.StateChanging {
		s.state[name] = true
	}

	methodsFile := m.MethodsFile
	if methodsFile == "" {
		methodsFile = opts.MethodsFile
	}
	if methodsFile != "" {
		s.index, err = oracle.LoadIndex(s.resolve(methodsFile))
		if err != nil && !(m.MethodsFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	for _, c := range m.Classes {
		for _, ms := range c.Methods {
			mr, err := s.target(c, ms)
			if errors.Is(err, signature.ErrMalformed) {
				return nil, err
			}
			if err != nil {
				opts.Logger.Warn("skipping method", "class", c.Name, "method", ms.Name, "err", err)
				s.Skipped = append(s.Skipped, c.Name+"."+ms.Name)
				continue
			}
			s.Methods = append(s.Methods, mr)
		}
	}
	return s, nil
}

func (s *Suite) target(c ClassSpec, ms MethodSpec) (taxonomy.MethodResult, error) {
	id := ms.ID
	if id == "" {
		if s.index == nil {
			return taxonomy.MethodResult{}, fmt.Errorf("%w: %s.%s: no method index", oracle.ErrUnresolvedMethod, c.Name, ms.Name)
		}
		arity := -1
		if ms.Parameters != nil {
			arity = len(ms.Parameters)
		}
		sig, err := s.index.Resolve(c.Name, ms.Name, arity)
		if err != nil {
			return taxonomy.MethodResult{}, err
		}
		id = sig.ID()
	} else if _, err := signature.Parse(id); err != nil {
		return taxonomy.MethodResult{}, err
	}

	mr := taxonomy.MethodResult{
		Target: taxonomy.MethodTarget{
			Class:      c.Name,
			Method:     ms.Name,
			ID:         id,
			Parameters: ms.Parameters,
			Location:   c.Location,
		},
		Assertions: []taxonomy.Assertion{},
		Faults:     []taxonomy.Fault{},
	}
	for _, a := range ms.Assertions {
		mr.Assertions = append(mr.Assertions, taxonomy.Assertion{
			ID: taxonomy.GenerateID(c.Name, ms.Name, a.Line, a.Column),
			Span: taxonomy.Span{
				StartLine:   a.Line,
				StartColumn: a.Column,
				EndLine:     a.EndLine,
				EndColumn:   a.EndColumn,
			},
			Expression:     a.Expression,
			Classification: taxonomy.Unclassified,
		})
	}
	return mr, nil
}

func (s *Suite) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// ChangesState reports whether calls to method mutate program state.
func (s *Suite) ChangesState(method string) bool {
	return s.state[method]
}

// Find returns the method result whose "Class.method" or full id
// matches name.
func (s *Suite) Find(name string) (taxonomy.MethodResult, bool) {
	i := slices.IndexFunc(s.Methods, func(mr taxonomy.MethodResult) bool {
		return mr.Target.ID == name || mr.Target.QualifiedName() == name
	})
	if i < 0 {
		return taxonomy.MethodResult{}, false
	}
	return s.Methods[i], true
}

// Code returns the decoded body of target, loading and caching its
// class file.
func (s *Suite) Code(target taxonomy.MethodTarget) (bytecode.Method, error) {
	if s.Manifest.BytecodeDir == "" {
		return bytecode.Method{}, errors.New("manifest has no bytecode_dir")
	}
	c, ok := s.classes[target.Class]
	if !ok {
		path := filepath.Join(s.resolve(s.Manifest.BytecodeDir), filepath.FromSlash(strings.ReplaceAll(target.Class, ".", "/"))+".json")
		var err error
		c, err = bytecode.LoadClass(path)
		if err != nil {
			return bytecode.Method{}, err
		}
		s.classes[target.Class] = c
	}
	arity := -1
	if sig, err := signature.Parse(target.ID); err == nil {
		arity = len(sig.Params)
	}
	return c.Method(target.Method, arity)
}
