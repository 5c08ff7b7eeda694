package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// A command to run on the build machine.
type Command struct {
	Args        []string  // Program and arguments. Args[0] is resolved against the child's PATH.
	Dir         string    // Working directory. Empty means the current directory.
	Env         []string  // Overrides merged on top of the current environment.
	SearchPaths []string  // Directories prepended to PATH of the child only.
	Stdin       io.Reader // Optional.
	Stdout      io.Writer // Optional; receives output in addition to the captured copy.
	Stderr      io.Writer // Optional; receives output in addition to the captured copy.
}

// Output of a command execution.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*ExecResult, error)
}

// Runs commands as host processes.
type Host struct{}

// Runs the command and waits for it to exit.
//
// A non-zero exit code is not treated as an error; the caller decides. An
// error is returned when the process cannot be started or the context ends
// before it exits.
func (h Host) Run(ctx context.Context, c Command) (*ExecResult, error) {
	cmd, err := h.command(c)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, c.Args[0], err)
	}
	slog.Debug("process started", "args", c.Args, "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		cmd.Process.Kill()
		<-done
		return nil, ctx.Err()
	}

	result := &ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("%w: %w", ErrRuntime, waitErr)
	}

	slog.Debug("process exited", "args", c.Args, "code", result.ExitCode)
	return result, nil
}

// Starts the command without waiting for it.
//
// The process outlives ctx; it ends when it exits on its own or when
// [Process.Stop] is called.
func (h Host) Start(_ context.Context, c Command) (*Process, error) {
	cmd, err := h.command(c)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, c.Args[0], err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	slog.Debug("process started", "args", c.Args, "pid", cmd.Process.Pid)
	return p, nil
}

// Builds the exec.Cmd with the merged environment.
func (Host) command(c Command) (*exec.Cmd, error) {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return nil, ErrEmptyCommand
	}

	env := prependPath(mergeEnv(os.Environ(), c.Env), c.SearchPaths)

	path, err := lookPath(c.Args[0], env)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, c.Args[0], err)
	}

	cmd := exec.Command(path, c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = env
	cmd.Stdin = c.Stdin
	return cmd, nil
}

// Resolves name against the PATH in env rather than the builder's own PATH.
func lookPath(name string, env []string) (string, error) {
	for _, entry := range env {
		k, v, ok := strings.Cut(entry, "=")
		if ok && envKey(k) == envKey("PATH") {
			return lookPathIn(name, v)
		}
	}
	return exec.LookPath(name)
}

// Returns w, or a writer duplicating to both when extra is set.
func tee(w, extra io.Writer) io.Writer {
	if extra == nil {
		return w
	}
	return io.MultiWriter(w, extra)
}

// A long-running host process.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

// Returns the process identifier.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Returns a channel closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Waits for the process to exit and returns its exit error, if any.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Asks the process to terminate and kills it if it is still running after
// grace.
//
// The termination request is SIGTERM where the platform supports it. Calling
// Stop on an exited process is not an error.
func (p *Process) Stop(ctx context.Context, grace time.Duration) error {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.cmd.Process.Kill()
			return
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-p.done:
		case <-timer.C:
			slog.Warn("process did not exit in time, killing", "pid", p.Pid(), "grace", grace)
			p.cmd.Process.Kill()
		case <-ctx.Done():
			p.cmd.Process.Kill()
		}
	})

	<-p.done
	return nil
}
