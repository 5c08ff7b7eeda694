package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/cellprofiler/cpbuild/internal"
	"github.com/cellprofiler/cpbuild/internal/cli"
	"github.com/cellprofiler/cpbuild/internal/logging"
)

// The entry point for cpbuild.
//
// Initializes logging, displays startup information, and executes the root
// command. A failing test suite exits with the suite's status; any other
// error exits with 1.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("cpbuild is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			slog.Warn(err.Error())
			os.Exit(exitErr.Code)
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Creates a buffered logger seeded from build-time linker flags.
//
// The logger is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := logging.NewHandler()
	handler.SetLevel(logLevel())
	return slog.New(handler)
}

// Returns the log level derived from build-time linker flags.
func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
