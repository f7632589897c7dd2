// Package scaffold writes a starter assay configuration and suite
// manifest into a project directory.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/unbound-force/assay/internal/config"
)

//go:embed assets/*
var assets embed.FS

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the root directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is the assay version string to embed in the
	// version marker comment. Defaults to "dev".
	Version string

	// Config is rendered into the configuration file. If nil,
	// config.DefaultConfig() is used.
	Config *config.AssayConfig

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

// versionMarker returns the YAML comment prepended to each
// scaffolded file.
func versionMarker(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# scaffolded by assay %s\n", version)
}

// Run writes the configuration file (config.DefaultFileName) and every
// embedded asset into the target directory. Each file is prepended
// with a version marker comment:
//
//	# scaffolded by assay vX.Y.Z
//
// Existing files are skipped unless opts.Force is set.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}

	// The oracle cannot resolve bare method names without an index.
	methodsPath := filepath.Join(opts.TargetDir, opts.Config.Oracle.MethodsFile)
	if _, err := os.Stat(methodsPath); os.IsNotExist(err) {
		fmt.Fprintf(opts.Stdout, "Warning: no %s found in target directory.\n", opts.Config.Oracle.MethodsFile)
		fmt.Fprintln(opts.Stdout, "Methods without an explicit id will be skipped.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	marker := versionMarker(opts.Version)

	cfgData, err := opts.Config.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	if err := write(opts, result, config.DefaultFileName, append([]byte(marker), cfgData...)); err != nil {
		return nil, err
	}

	err = fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		content, err := assets.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded asset %s: %w", path, err)
		}
		return write(opts, result, strings.TrimPrefix(path, "assets/"), append([]byte(marker), content...))
	})
	if err != nil {
		return nil, err
	}

	printSummary(opts.Stdout, result)
	return result, nil
}

func write(opts Options, result *Result, rel string, content []byte) error {
	outPath := filepath.Join(opts.TargetDir, rel)

	_, statErr := os.Stat(outPath)
	exists := statErr == nil
	if exists && !opts.Force {
		result.Skipped = append(result.Skipped, rel)
		return nil
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(outPath, content, 0o644); err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}

	if exists {
		result.Overwritten = append(result.Overwritten, rel)
	} else {
		result.Created = append(result.Created, rel)
	}
	return nil
}

// printSummary writes a human-readable summary of the scaffold
// operation to w.
func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "assay project initialized:")

	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit suite.yaml, then run: assay classify suite.yaml")

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}

// AssetPaths returns the relative paths of all embedded assets.
func AssetPaths() ([]string, error) {
	var paths []string
	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, strings.TrimPrefix(path, "assets/"))
		return nil
	})
	return paths, err
}
