package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cellprofiler/cpbuild/internal"
	"github.com/cellprofiler/cpbuild/internal/build"
	"github.com/cellprofiler/cpbuild/internal/fetch"
	"github.com/cellprofiler/cpbuild/internal/logging"
	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/cellprofiler/cpbuild/internal/step"
)

// Returned by the test command when the suite fails. The process exits with
// Code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("test suite exited with status %d", e.Code)
}

// Loads the project and runs the named step in one orchestration pass.
func runStep(ctx context.Context, name string, inPlace bool, opts build.Options) (*build.Build, error) {
	cfg, err := project.Load(RootCmd.Config, paths.UserConfig())
	if err != nil {
		return nil, err
	}

	ec, err := executionContext(cfg, inPlace)
	if err != nil {
		return nil, err
	}

	b := build.New(cfg, opts)
	ran, err := b.Run(ctx, ec, name)
	if err != nil {
		return nil, err
	}

	slog.Debug("pass complete", "steps", strings.Join(ran, ","))
	return b, nil
}

// Builds the per-invocation step context from the flags and the project.
func executionContext(cfg *project.Config, inPlace bool) (*step.Context, error) {
	source, err := filepath.Abs(RootCmd.SourceDir)
	if err != nil {
		return nil, err
	}

	buildDir := RootCmd.BuildDir
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(source, buildDir)
	}

	searchPaths := make([]string, 0, len(cfg.SearchPaths))
	for _, p := range cfg.SearchPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(source, p)
		}
		searchPaths = append(searchPaths, p)
	}

	return &step.Context{
		SourceDir:   source,
		BuildDir:    buildDir,
		InPlace:     inPlace,
		SearchPaths: searchPaths,
	}, nil
}

// Returns a download progress bar when stderr is an interactive terminal
// and output is not suppressed.
func progress() fetch.ProgressFunc {
	if internal.IsQuiet() || !logging.IsTerminal(os.Stderr) {
		return nil
	}
	return fetch.ProgressBar(os.Stderr, "prokaryote")
}
