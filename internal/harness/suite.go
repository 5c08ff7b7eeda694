package harness

import (
	"context"
	"fmt"
	"io"

	"github.com/cellprofiler/cpbuild/internal/runtime"
)

// A test suite.
//
// Run returns the suite's exit status. An error means the suite could not
// be run at all; failing tests are reported through the status.
type Suite interface {
	Run(ctx context.Context, args, env []string) (int, error)
}

// Adapts an in-process function to [Suite].
type SuiteFunc func(ctx context.Context, args, env []string) (int, error)

// Implements [Suite].
func (f SuiteFunc) Run(ctx context.Context, args, env []string) (int, error) {
	return f(ctx, args, env)
}

// Runs an external test command.
type CommandSuite struct {
	Command     []string       // Suite argv; run arguments are appended.
	Dir         string         // Working directory.
	SearchPaths []string       // Prepended to PATH of the suite.
	Runner      runtime.Runner // Defaults to [runtime.Host].
	Stdout      io.Writer      // Receives the suite's output.
	Stderr      io.Writer      // Receives the suite's diagnostics.
}

// Implements [Suite].
func (s *CommandSuite) Run(ctx context.Context, args, env []string) (int, error) {
	if len(s.Command) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrSuite, runtime.ErrEmptyCommand)
	}

	runner := s.Runner
	if runner == nil {
		runner = runtime.Host{}
	}

	argv := append(append([]string{}, s.Command...), args...)
	res, err := runner.Run(ctx, runtime.Command{
		Args:        argv,
		Dir:         s.Dir,
		Env:         env,
		SearchPaths: s.SearchPaths,
		Stdout:      s.Stdout,
		Stderr:      s.Stderr,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSuite, err)
	}
	return res.ExitCode, nil
}
