package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
)

// DefaultShell runs the generated script.
const DefaultShell = "bash"

// waitDelay bounds how long Run waits for output pipes after the shell's
// process group has been killed.
const waitDelay = 500 * time.Millisecond

// ExitError reports a script that stopped with a non-zero status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("commands failed with exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Executor feeds command lists to a shell.
type Executor struct {
	shell string
	out   io.Writer
}

// New creates an executor writing the shell's combined stdout and stderr
// to out.
func New(out io.Writer) *Executor {
	return &Executor{shell: DefaultShell, out: out}
}

// WithShell returns a copy of e that runs shell instead of bash.
func (e *Executor) WithShell(shell string) *Executor {
	cp := *e
	cp.shell = shell
	return &cp
}

// Script renders commands as a single shell script: abort on the first
// failure, and echo each command before running it.
func Script(commands []string) string {
	var sb strings.Builder
	sb.WriteString("set -e\n")
	for _, command := range commands {
		sb.WriteString("echo ")
		sb.WriteString(shellquote.Join("$ " + command))
		sb.WriteString("\n")
		sb.WriteString(command)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run executes commands in one shell session. An empty list is a no-op and
// starts no shell. Cancelling ctx kills the shell and everything it started.
func (e *Executor) Run(ctx context.Context, commands []string) error {
	if len(commands) == 0 {
		slog.Debug("executor_skipped", "reason", "no commands")
		return nil
	}

	cmd := exec.CommandContext(ctx, e.shell)
	cmd.Stdin = strings.NewReader(Script(commands))
	cmd.Stdout = e.out
	cmd.Stderr = e.out
	// The shell leads its own process group so cancelling kills every
	// command it started, not just bash.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	slog.Debug("executor_start", "shell", e.shell, "commands", len(commands))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			slog.Debug("executor_cancelled", "error", ctxErr)
			return fmt.Errorf("commands interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("executor_failed", "exit_code", exitErr.ExitCode())
			return &ExitError{Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("failed to run %s: %w", e.shell, err)
	}

	slog.Debug("executor_done")
	return nil
}
