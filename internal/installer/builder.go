package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/cellprofiler/cpbuild/internal/runtime"
	"github.com/cellprofiler/cpbuild/internal/toolchain"
)

const (

	// Fragment holding the product version and output location.
	VersionFragment = "version.iss"

	// Fragment holding the optional component's Start-menu entry.
	DefaultComponentFragment = "component.iss"
)

// Compiles the installer for a frozen bundle.
type Builder struct {
	ProductName       string            // e.g. "CellProfiler".
	Version           string            // Dotted version shown by the installer.
	ScriptDir         string            // Directory holding the templates; fragments are written here.
	Template32        string            // Template for 32-bit hosts, relative to ScriptDir.
	Template64        string            // Template for 64-bit hosts, relative to ScriptDir.
	ComponentFragment string            // Defaults to [DefaultComponentFragment].
	MenuEntry         string            // Start-menu line for the optional component.
	Executable        string            // Frozen executable, relative to the bundle directory.
	Extension         string            // Suffix of the compiled installer, e.g. ".exe".
	Compiler          toolchain.Tool    // Tool looked up through Locator.
	Locator           toolchain.Locator // Finds the compiler command line.
	Command           toolchain.Command // Already located compiler; skips the lookup when set.
	Runner            runtime.Runner    // Defaults to [runtime.Host].
	SearchPaths       []string          // Prepended to PATH of the compiler.
	AddressBits       int               // Host address width; zero means the running binary's.
}

// A single installer build.
type Request struct {
	BundleDir     string // Frozen bundle directory.
	OutputDir     string // Directory receiving the installer.
	InstallerName string // Output base name, without extension.
	WithComponent bool   // Add the optional component's Start-menu entry.
	Force         bool   // Compile even when the output is up to date.
}

// Outcome of [Builder.Build].
type Result struct {
	Output   string // Installer path.
	Template string // Template that was compiled.
	Compiled bool   // False when the output was already up to date.
}

// Builds the installer.
//
// The compiler is looked up before anything is written, so an unregistered
// compiler fails with [CompilerNotRegisteredError] without side effects
// beyond creating the output directory. The two script fragments exist only
// for the duration of the call and are removed on every return path. The
// compiler runs only when the frozen executable or the template is newer
// than the existing installer, unless req.Force is set.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	command, err := b.command(ctx)
	if err != nil {
		return nil, err
	}

	fragments := []string{
		filepath.Join(b.ScriptDir, VersionFragment),
		filepath.Join(b.ScriptDir, b.componentFragment()),
	}
	defer func() {
		for _, f := range fragments {
			if rmErr := os.Remove(f); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove installer fragment", "path", f, "error", rmErr)
			}
		}
	}()

	if err := b.writeFragments(fragments, outputDir, req); err != nil {
		return nil, err
	}

	res := &Result{
		Output:   filepath.Join(outputDir, req.InstallerName+b.Extension),
		Template: filepath.Join(b.ScriptDir, b.template()),
	}

	required := []string{filepath.Join(req.BundleDir, b.Executable), res.Template}
	stale, err := isStale(res.Output, required)
	if err != nil {
		return nil, err
	}
	if !stale && !req.Force {
		slog.Info("installer is up to date", "path", res.Output)
		return res, nil
	}

	if err := b.compile(ctx, command, res.Template); err != nil {
		return nil, err
	}

	res.Compiled = true
	slog.Info("installer compiled", "path", res.Output, "template", filepath.Base(res.Template))
	return res, nil
}

// Finds the compiler command line through Locator.
//
// Fails with [CompilerNotRegisteredError] when no locator knows the
// compiler. Nothing is written.
func (b *Builder) Locate(ctx context.Context) (toolchain.Command, error) {
	command, err := b.Locator.Locate(ctx, b.Compiler)
	if err != nil {
		if errors.Is(err, toolchain.ErrMissingTool) {
			return "", &CompilerNotRegisteredError{Tool: b.Compiler.Name, FileType: b.Compiler.FileType, Err: err}
		}
		return "", err
	}
	return command, nil
}

func (b *Builder) command(ctx context.Context) (toolchain.Command, error) {
	if b.Command != "" {
		return b.Command, nil
	}
	return b.Locate(ctx)
}

// Writes the version and component fragments.
func (b *Builder) writeFragments(fragments []string, outputDir string, req Request) error {
	versionISS := fmt.Sprintf("AppVerName=%s %s\nOutputBaseFilename=%s\nOutputDir=%s\n",
		b.ProductName, b.Version, req.InstallerName, outputDir)

	var componentISS string
	if req.WithComponent && b.MenuEntry != "" {
		componentISS = strings.TrimRight(b.MenuEntry, "\r\n") + "\n"
	}

	for i, content := range []string{versionISS, componentISS} {
		if err := os.WriteFile(fragments[i], []byte(content), paths.DefaultFileMode); err != nil {
			return fmt.Errorf("write installer fragment: %w", err)
		}
	}
	return nil
}

// Runs the compiler against template.
func (b *Builder) compile(ctx context.Context, command toolchain.Command, template string) error {
	argv, err := command.Argv(template)
	if err != nil {
		return &CompileError{Template: template, Err: err}
	}

	runner := b.Runner
	if runner == nil {
		runner = runtime.Host{}
	}

	slog.Info("compiling installer", "template", filepath.Base(template), "compiler", argv[0])
	res, err := runner.Run(ctx, runtime.Command{
		Args:        argv,
		Dir:         b.ScriptDir,
		SearchPaths: b.SearchPaths,
	})
	if err != nil {
		return &CompileError{Template: template, Err: err}
	}
	if res.ExitCode != 0 {
		return &CompileError{Template: template, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return nil
}

// Returns the template matching the host address width.
func (b *Builder) template() string {
	bits := b.AddressBits
	if bits == 0 {
		bits = strconv.IntSize
	}
	if bits > 32 {
		return b.Template64
	}
	return b.Template32
}

func (b *Builder) componentFragment() string {
	if b.ComponentFragment != "" {
		return b.ComponentFragment
	}
	return DefaultComponentFragment
}

// Reports whether output is missing or older than any required file.
// A missing required file is an error.
func isStale(output string, required []string) (bool, error) {
	var newest time.Time
	for _, r := range required {
		info, err := os.Stat(r)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrMissingInput, r)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	info, err := os.Stat(output)
	if err != nil {
		return true, nil
	}
	return newest.After(info.ModTime()), nil
}
