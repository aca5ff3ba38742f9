// Package runner executes external commands for xtc, either once (configure,
// make) or under a bounded retry policy (network operations).
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/bitswalk/xtc/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the runner package
func SetLogger(l *logs.Logger) {
	log = l
}

// Command describes one external process invocation
type Command struct {
	Name string   // executable, looked up on the PATH of Env
	Args []string // arguments, excluding Name
	Dir  string   // working directory
	Env  []string // full environment in KEY=VALUE form; nil inherits os.Environ()
}

// String renders the command line for logs and diagnostics
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner is the interface for running external commands.
// A non-nil error means the command could not start or exited non-zero.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes, streaming their output
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner creates an ExecRunner. Nil writers default to the
// process's own stdout and stderr.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &ExecRunner{stdout: stdout, stderr: stderr}
}

// Run executes cmd and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("no command specified")
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Env != nil {
		c.Env = cmd.Env
		// exec.Command resolves Name against our own PATH; re-resolve
		// against the child's so freshly installed tools are found.
		if path, ok := lookPathIn(cmd.Name, cmd.Env); ok {
			c.Path = path
			c.Err = nil
		}
	}

	tail := newTailBuffer(4096)
	c.Stdout = r.stdout
	c.Stderr = io.MultiWriter(tail, r.stderr)

	log.Debug("Running command", "cmd", cmd.String(), "dir", cmd.Dir)

	if err := c.Run(); err != nil {
		if stderr := strings.TrimSpace(tail.String()); stderr != "" {
			return fmt.Errorf("%s: %w\nstderr: %s", cmd.Name, err, stderr)
		}
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}

// ExitCode extracts the exit status from an error returned by Run.
// It returns -1 when the process did not exit normally or never started.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// lookPathIn resolves name against the PATH entry of env
func lookPathIn(name string, env []string) (string, bool) {
	if strings.Contains(name, "/") {
		return "", false
	}
	var pathVar string
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			pathVar = strings.TrimPrefix(kv, "PATH=")
		}
	}
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			continue
		}
		candidate := dir + "/" + name
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0 {
			return candidate, true
		}
	}
	return "", false
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
