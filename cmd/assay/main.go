package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/assay/internal/config"
	"github.com/unbound-force/assay/internal/loader"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/report"
	"github.com/unbound-force/assay/internal/scaffold"
	"github.com/unbound-force/assay/internal/taxonomy"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "assay",
		Short: "Assay: assertion quality analysis for stack-machine methods",
		Long: `Assay classifies the assert statements of stack-machine methods
by solving their negations, refines contingent ones by running the
method with assertions disabled, and fuzzes methods to find crashes
that no assertion guards.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(charmlog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(newClassifyCmd())
	root.AddCommand(newFuzzCmd())
	root.AddCommand(newExploreCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newInitCmd())
	return root
}

// commonParams holds the flags shared by the suite commands.
type commonParams struct {
	suitePath   string
	configPath  string
	method      string
	format      string
	verbose     bool
	interactive bool

	// oracle overrides the configured command oracle when set.
	oracle oracle.Oracle

	stdout io.Writer
	stderr io.Writer
}

func (p commonParams) validate() error {
	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}
	return nil
}

func addCommonFlags(cmd *cobra.Command, p *commonParams) {
	cmd.Flags().StringVarP(&p.method, "method", "m", "",
		"analyze one method, by Class.method or full id (default: all)")
	cmd.Flags().StringVar(&p.format, "format", "text",
		"output format: text or json")
	cmd.Flags().StringVarP(&p.configPath, "config", "c", "",
		"path to config file (default: "+config.DefaultFileName+")")
	cmd.Flags().BoolVarP(&p.interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")
}

// loadConfig reads the config file at path, or the default file in
// the working directory when path is empty.
func loadConfig(path string) (*config.AssayConfig, error) {
	if path == "" {
		return config.Load(config.DefaultFileName)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return config.Load(path)
}

// session is the loaded state shared by the suite commands.
type session struct {
	cfg     *config.AssayConfig
	suite   *loader.Suite
	methods []taxonomy.MethodResult
	oracle  oracle.Oracle
	meta    taxonomy.Metadata
}

func openSession(p commonParams) (*session, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return nil, err
	}

	logger.Info("loading suite", "path", p.suitePath)
	suite, err := loader.Load(p.suitePath, loader.Options{
		MethodsFile: cfg.Oracle.MethodsFile,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	methods := suite.Methods
	if p.method != "" {
		mr, ok := suite.Find(p.method)
		if !ok {
			return nil, fmt.Errorf("method %q not found in suite %q", p.method, p.suitePath)
		}
		methods = []taxonomy.MethodResult{mr}
	}

	o := p.oracle
	if o == nil {
		cmd := oracle.NewCommand(cfg.Oracle, logger)
		cmd.Dir = suite.Dir
		o = cmd
	}

	s := &session{
		cfg:     cfg,
		suite:   suite,
		methods: methods,
		oracle:  o,
		meta: taxonomy.Metadata{
			AssayVersion: version,
			Timestamp:    time.Now(),
		},
	}
	for _, name := range suite.Skipped {
		s.warn("unresolved method " + name)
	}
	return s, nil
}

func (s *session) warn(msg string) {
	s.meta.Warnings = append(s.meta.Warnings, msg)
}

func (s *session) finish() {
	s.meta.Duration = time.Since(s.meta.Timestamp)
}

// writeResults outputs classified and fuzzed results in the requested
// format.
func writeResults(p commonParams, s *session, classes []taxonomy.ClassResult) error {
	if p.interactive {
		var body strings.Builder
		if err := report.WriteText(&body, classes, report.TextOptions{Verbose: true}); err != nil {
			return err
		}
		return runInteractive("assay: "+p.suitePath, body.String())
	}
	switch p.format {
	case "json":
		return report.WriteJSON(p.stdout, classes, s.meta)
	default:
		return report.WriteText(p.stdout, classes, report.TextOptions{Verbose: p.verbose})
	}
}

func newSchemaCmd() *cobra.Command {
	var explore bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for assay report output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of assay classify/fuzz --format=json output, or of
assay explore --format=json output with --explore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := report.Schema
			if explore {
				schema = report.ExploreSchema
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), schema)
			return err
		},
	}
	cmd.Flags().BoolVar(&explore, "explore", false,
		"print the exploration report schema")
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config and suite manifest",
		Long: `Write ` + config.DefaultFileName + ` with the default settings and a
starter suite.yaml into the target directory (default: current).
Existing files are kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			_, err := scaffold.Run(scaffold.Options{
				TargetDir: dir,
				Force:     force,
				Version:   version,
				Stdout:    cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false,
		"overwrite existing files")
	return cmd
}
