// Package config loads and validates the assay configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working
// directory when no explicit path is given.
const DefaultFileName = ".assay.yaml"

// AssayConfig is the root configuration.
type AssayConfig struct {
	Oracle  OracleConfig  `yaml:"oracle"`
	Solver  SolverConfig  `yaml:"solver"`
	SymExec SymExecConfig `yaml:"symexec"`
	Fuzz    FuzzConfig    `yaml:"fuzz"`
}

// OracleConfig describes how the external method executor is run.
type OracleConfig struct {
	// Command is the executable followed by fixed arguments. The
	// method id and the argument tuple are appended per call.
	Command []string `yaml:"command"`

	// AssertionsDisabledFlag is appended when a call runs with
	// assertion checking disabled.
	AssertionsDisabledFlag string `yaml:"assertions_disabled_flag"`

	// Timeout bounds a single oracle call. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// MethodsFile lists the known method ids, one per line.
	MethodsFile string `yaml:"methods_file"`
}

// SolverConfig bounds classification work.
type SolverConfig struct {
	// ClassifierRetries is the number of distinct models tried while
	// an assertion looks useful at depth 0.
	ClassifierRetries int `yaml:"classifier_retries"`

	// InvokeAttempts bounds argument regeneration inside one
	// invocation.
	InvokeAttempts int `yaml:"invoke_attempts"`
}

// SymExecConfig bounds symbolic exploration.
type SymExecConfig struct {
	MaxDepth int `yaml:"max_depth"`
	MaxSteps int `yaml:"max_steps"`
}

// FuzzConfig bounds a fuzzing run.
type FuzzConfig struct {
	Iterations int `yaml:"iterations"`
	MaxFaults  int `yaml:"max_faults"`
	MinDepth   int `yaml:"min_depth"`

	// SymbolicSeeds seeds the corpus from symbolic exploration.
	SymbolicSeeds bool `yaml:"symbolic_seeds"`

	// Seed fixes the random source. Zero picks a time-based seed.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *AssayConfig {
	return &AssayConfig{
		Oracle: OracleConfig{
			Command:                []string{"python", "-m", "solutions.interpreter"},
			AssertionsDisabledFlag: "--assertions-disabled",
			Timeout:                10 * time.Second,
			MethodsFile:            "methods.txt",
		},
		Solver: SolverConfig{
			ClassifierRetries: 10,
			InvokeAttempts:    10,
		},
		SymExec: SymExecConfig{
			MaxDepth: 150,
			MaxSteps: 10_000,
		},
		Fuzz: FuzzConfig{
			Iterations:    10_000,
			MaxFaults:     1,
			MinDepth:      1,
			SymbolicSeeds: true,
		},
	}
}

// Load reads the configuration at path and overlays it on the
// defaults. A missing file yields the defaults.
func Load(path string) (*AssayConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first out-of-range setting.
func (c *AssayConfig) Validate() error {
	switch {
	case len(c.Oracle.Command) == 0:
		return errors.New("oracle.command must not be empty")
	case c.Oracle.Timeout < 0:
		return errors.New("oracle.timeout must not be negative")
	case c.Solver.ClassifierRetries < 1:
		return errors.New("solver.classifier_retries must be at least 1")
	case c.Solver.InvokeAttempts < 1:
		return errors.New("solver.invoke_attempts must be at least 1")
	case c.SymExec.MaxDepth < 1:
		return errors.New("symexec.max_depth must be at least 1")
	case c.SymExec.MaxSteps < 1:
		return errors.New("symexec.max_steps must be at least 1")
	case c.Fuzz.Iterations < 1:
		return errors.New("fuzz.iterations must be at least 1")
	case c.Fuzz.MaxFaults < 1:
		return errors.New("fuzz.max_faults must be at least 1")
	case c.Fuzz.MinDepth < 0:
		return errors.New("fuzz.min_depth must not be negative")
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *AssayConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
