package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/assay/internal/config"
)

// Command runs an external interpreter process per request. The method
// id and argument tuple are appended to Argv, followed by
// DisabledFlag when assertions are off. The process must print a JSON
// object {"message": ..., "depth": ...} as its last line of output.
type Command struct {
	Argv         []string
	DisabledFlag string
	Timeout      time.Duration
	Dir          string
	Logger       *log.Logger
}

// NewCommand builds a command oracle from configuration.
func NewCommand(cfg config.OracleConfig, logger *log.Logger) *Command {
	if logger == nil {
		logger = log.Default()
	}
	return &Command{
		Argv:         append([]string(nil), cfg.Command...),
		DisabledFlag: cfg.AssertionsDisabledFlag,
		Timeout:      cfg.Timeout,
		Logger:       logger,
	}
}

// Run executes one request. A request that outlives Timeout yields a
// "timeout" result rather than an error.
func (c *Command) Run(ctx context.Context, req Request) (Result, error) {
	if len(c.Argv) == 0 {
		return Result{}, fmt.Errorf("%w: no command configured", ErrInvocation)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	argv := append(append([]string(nil), c.Argv[1:]...), req.Method, req.Inputs)
	if req.AssertionsDisabled && c.DisabledFlag != "" {
		argv = append(argv, c.DisabledFlag)
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], argv...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger().Debug("oracle timed out", "method", req.Method, "inputs", req.Inputs)
		return Result{Message: MessageTimeout}, nil
	}

	res, parseErr := ParseOutput(stdout.Bytes())
	if parseErr == nil {
		return res, nil
	}
	if runErr != nil {
		return Result{}, fmt.Errorf("%w: %s %s: %v: %s",
			ErrInvocation, req.Method, req.Inputs, runErr, strings.TrimSpace(stderr.String()))
	}
	return Result{}, parseErr
}

func (c *Command) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

// ParseOutput extracts the result object from the last non-empty line
// of an interpreter's output.
func ParseOutput(out []byte) (Result, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return Result{}, fmt.Errorf("%w: empty output", ErrInvocation)
	}
	var res Result
	if err := json.Unmarshal([]byte(last), &res); err != nil {
		return Result{}, fmt.Errorf("%w: parsing %q: %v", ErrInvocation, last, err)
	}
	if res.Message == "" {
		return Result{}, fmt.Errorf("%w: result %q has no message", ErrInvocation, last)
	}
	return res, nil
}
