package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/shell"

	"github.com/oshokin/package-assembler/internal/logger"
)

// ExitCodeNotStarted marks a tool that could not be started at all.
const ExitCodeNotStarted = -1

var errEmptyCommand = errors.New("command line is empty")

// Command is a single external tool invocation.
type Command struct {
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Name is the executable, looked up in PATH.
	Name string
	// Args follow Name.
	Args []string
	// Env is appended to the current environment.
	Env []string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds what a finished tool printed.
type Result struct {
	// Stdout is the standard output alone.
	Stdout []byte
	// Combined interleaves stdout and stderr in write order.
	Combined []byte
}

// ToolError reports a tool that failed to start or exited non-zero.
type ToolError struct {
	Command  Command
	ExitCode int
	Output   string
	Err      error
}

// Error returns the command, its exit code and the captured output.
func (e *ToolError) Error() string {
	var b strings.Builder

	if e.ExitCode == ExitCodeNotStarted {
		fmt.Fprintf(&b, "%s: %v", e.Command, e.Err)
	} else {
		fmt.Fprintf(&b, "%s: exit status %d", e.Command, e.ExitCode)
	}

	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}

	return b.String()
}

// Unwrap returns the underlying exec error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// Runner runs external tools synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	// Echo receives the combined output while the tool runs. Nil discards it.
	Echo io.Writer
}

// NewExecRunner returns a runner that mirrors tool output to echo.
func NewExecRunner(echo io.Writer) *ExecRunner {
	return &ExecRunner{Echo: echo}
}

// Run starts cmd and waits for it. Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	logger.DebugKV(ctx, "Running tool", "command", cmd.String(), "dir", cmd.Dir)

	var (
		stdout   bytes.Buffer
		combined bytes.Buffer
		sink     io.Writer = &combined
	)

	if r.Echo != nil {
		sink = io.MultiWriter(&combined, r.Echo)
	}

	// Stdout and stderr are copied by separate goroutines.
	sink = &lockedWriter{w: sink}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // Tools come from the assembler config.
	c.Dir = cmd.Dir
	c.Stdout = io.MultiWriter(&stdout, sink)
	c.Stderr = sink

	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	err := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Combined: combined.Bytes(),
	}

	if err == nil {
		return result, nil
	}

	toolErr := &ToolError{
		Command:  cmd,
		ExitCode: ExitCodeNotStarted,
		Output:   combined.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}

	return result, toolErr
}

// ParseCommandLine splits a configured command string into words using
// POSIX shell quoting. Variables are not expanded.
func ParseCommandLine(line string) ([]string, error) {
	fields, err := shell.Fields(line, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", line, err)
	}

	if len(fields) == 0 {
		return nil, errEmptyCommand
	}

	return fields, nil
}

// NewCommand builds a Command from a configured command string plus extra arguments.
func NewCommand(dir, line string, args ...string) (Command, error) {
	words, err := ParseCommandLine(line)
	if err != nil {
		return Command{}, err
	}

	return Command{
		Dir:  dir,
		Name: words[0],
		Args: append(words[1:], args...),
	}, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}
