package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cellprofiler/cpbuild/internal/bundle"
	"github.com/cellprofiler/cpbuild/internal/fetch"
	"github.com/cellprofiler/cpbuild/internal/harness"
	"github.com/cellprofiler/cpbuild/internal/installer"
	"github.com/cellprofiler/cpbuild/internal/objectstore"
	"github.com/cellprofiler/cpbuild/internal/step"
	"github.com/cellprofiler/cpbuild/internal/toolchain"
	"github.com/cellprofiler/cpbuild/internal/version"
	"github.com/opencontainers/go-digest"
)

// Resolves the version and writes the metadata file under the output root.
func (b *Build) stampVersion(_ context.Context, ec *step.Context) error {
	dotted := b.opts.Version
	if dotted == "" {
		dotted = b.cfg.Version
	}

	info, err := version.Resolve(dotted, b.cfg.Commit)
	if err != nil {
		return err
	}

	path, err := version.Stamp(filepath.Join(ec.OutputRoot(), b.cfg.Freeze.MetadataDir), info)
	if err != nil {
		return err
	}

	b.info = info
	slog.Info("version stamped", "path", path, "version", info.Internal)
	return nil
}

// Ensures the versioned dependency is cached under the output root.
func (b *Build) fetchDependency(ctx context.Context, ec *step.Context) error {
	opts, err := b.fetchOptions()
	if err != nil {
		return err
	}

	v := b.opts.DependencyVersion
	if v == "" {
		v = b.cfg.Dependency.Version
	}

	dl, err := fetch.New(b.Client, opts).Fetch(ctx, v, ec.OutputRoot())
	if err != nil {
		return err
	}

	b.download = dl
	slog.Info("dependency ready", "path", dl.Path, "cached", dl.Cached)
	return nil
}

// Returns the dependency options from the project and the command line.
func (b *Build) fetchOptions() (fetch.Options, error) {
	d := b.cfg.Dependency
	opts := fetch.Options{
		URLTemplate: d.URLTemplate,
		Namespace:   d.Namespace,
		Artifact:    d.Artifact,
		Progress:    b.opts.Progress,
	}

	expected := b.opts.DependencyDigest
	if expected == "" {
		expected = d.Digest
	}
	if expected != "" {
		parsed, err := digest.Parse(expected)
		if err != nil {
			return fetch.Options{}, fmt.Errorf("dependency digest %q: %w", expected, err)
		}
		opts.Digest = parsed
	}
	return opts, nil
}

// Copies the staged tree into the install prefix.
func (b *Build) install(_ context.Context, ec *step.Context) error {
	if b.opts.Prefix == "" {
		slog.Info("staged output ready", "dir", ec.OutputRoot())
		return nil
	}

	if err := bundle.CopyTree(ec.OutputRoot(), b.opts.Prefix); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	slog.Info("installed", "from", ec.OutputRoot(), "prefix", b.opts.Prefix)
	return nil
}

// Leaves the generated files in the source tree for development use.
func (b *Build) develop(_ context.Context, ec *step.Context) error {
	slog.Info("source tree ready for development", "dir", ec.SourceDir, "version", b.info.Internal)
	return nil
}

// Assembles and freezes the bundle, then archives it when requested.
func (b *Build) freeze(ctx context.Context, ec *step.Context) error {
	opts, err := b.fetchOptions()
	if err != nil {
		return err
	}

	var format bundle.Format
	if b.opts.Archive != "" {
		if format, err = bundle.ParseFormat(b.opts.Archive); err != nil {
			return err
		}
	}

	a := &bundle.Assembler{
		SourceDir:   ec.SourceDir,
		InputRoot:   ec.OutputRoot(),
		EntryScript: b.cfg.EntryScript,
		Config:      b.cfg.Freeze,
		Dependency:  opts,
		Freezer: &bundle.ExternalFreezer{
			Command:     b.cfg.Freeze.Command,
			Dir:         ec.SourceDir,
			SearchPaths: ec.SearchPaths,
			Runner:      b.runner(),
		},
	}

	bundleDir := b.bundleDir(ec)
	m, err := a.Assemble(ctx, bundleDir, bundle.Flags{
		Platform:      b.opts.Platform,
		WithComponent: b.opts.WithComponent,
		Libraries:     b.opts.Libraries,
		RedistDir:     b.redistDir(),
	})
	if err != nil {
		return err
	}
	slog.Info("bundle frozen", "dir", bundleDir, "destinations", len(m.Destinations()))

	if format == "" {
		return nil
	}

	name := b.cfg.Freeze.ArchiveName
	if name == "" {
		name = fmt.Sprintf("%s-%s-%s", b.cfg.Name, b.info.Dotted, b.opts.Platform)
	}
	res, err := bundle.Archive(bundleDir, filepath.Join(ec.SourceDir, name), format)
	if err != nil {
		return err
	}
	slog.Info("bundle archived", "path", res.Path, "blake3", res.Checksum)
	return nil
}

// Returns the redistributables directory: the flag, then the project, then
// the registered runtime on Windows.
func (b *Build) redistDir() string {
	if b.opts.RedistDir != "" {
		return b.opts.RedistDir
	}
	if b.cfg.Freeze.RedistDir != "" {
		return b.cfg.Freeze.RedistDir
	}
	if b.opts.Platform != "windows" {
		return ""
	}

	dir, err := toolchain.RedistDir()
	if err != nil {
		slog.Warn("runtime redistributables not found, bundle may not start on machines without them", "error", err)
		return ""
	}
	return dir
}

func (b *Build) bundleDir(ec *step.Context) string {
	return filepath.Join(ec.SourceDir, b.cfg.Freeze.DistDir)
}

// Finds the installer compiler so a missing one fails before freezing.
func (b *Build) locateCompiler(ctx context.Context, ec *step.Context) error {
	command, err := b.installerBuilder(ec).Locate(ctx)
	if err != nil {
		return err
	}
	b.compiler = command
	slog.Debug("installer compiler found", "command", string(command))
	return nil
}

func (b *Build) installerBuilder(ec *step.Context) *installer.Builder {
	cfg := b.cfg.Installer
	return &installer.Builder{
		ProductName: b.cfg.Name,
		Version:     b.info.Dotted,
		ScriptDir:   ec.SourceDir,
		Template32:  cfg.Template32,
		Template64:  cfg.Template64,
		MenuEntry:   b.cfg.Freeze.Component.MenuEntry,
		Executable:  b.cfg.Freeze.Executable,
		Extension:   cfg.Extension,
		Compiler:    toolchain.Tool{Name: cfg.Compiler, FileType: cfg.FileType},
		Locator:     b.locator(),
		Command:     b.compiler,
		Runner:      b.runner(),
		SearchPaths: ec.SearchPaths,
	}
}

// Compiles the installer for the frozen bundle.
func (b *Build) buildInstaller(ctx context.Context, ec *step.Context) error {
	cfg := b.cfg.Installer
	builder := b.installerBuilder(ec)

	outputDir := b.opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(ec.SourceDir, cfg.OutputDir)
	}
	name := b.opts.InstallerName
	if name == "" {
		name = b.cfg.InstallerName(b.info.Dotted)
	}

	res, err := builder.Build(ctx, installer.Request{
		BundleDir:     b.bundleDir(ec),
		OutputDir:     outputDir,
		InstallerName: name,
		WithComponent: b.opts.WithComponent,
		Force:         b.opts.Force,
	})
	if err != nil {
		return err
	}

	b.installer = res
	return nil
}

// Uploads the installer built in this pass.
func (b *Build) publish(ctx context.Context, _ *step.Context) error {
	if b.installer == nil {
		return ErrNoInstaller
	}

	cfg := objectstore.ConfigFromProject(b.cfg.Publish)
	if b.opts.Bucket != "" {
		cfg.Bucket = b.opts.Bucket
	}

	p, err := objectstore.New(cfg)
	if err != nil {
		return err
	}

	obj, err := p.Publish(ctx, b.installer.Output, b.info.Dotted)
	if err != nil {
		return err
	}
	slog.Info("installer published", "bucket", obj.Bucket, "key", obj.Key, "size", obj.Size)
	return nil
}

// Runs the test suite with its sidecar and records the exit status.
func (b *Build) test(ctx context.Context, ec *step.Context) error {
	cfg := b.cfg.Test

	suite := b.Suite
	if suite == nil {
		suite = &harness.CommandSuite{
			Command:     cfg.Command,
			Dir:         ec.SourceDir,
			SearchPaths: ec.SearchPaths,
			Runner:      b.runner(),
			Stdout:      b.opts.Stdout,
			Stderr:      b.opts.Stderr,
		}
	}

	h := &harness.Harness{
		Sidecar: harness.NewSidecar(cfg.Sidecar, ec.SearchPaths),
		Suite:   suite,
		Env:     cfg.Env,
	}

	code, err := h.Run(ctx, b.opts.TestArgs)
	if err != nil {
		return err
	}

	b.testStatus = code
	if code != 0 {
		slog.Warn("test suite failed", "status", code)
	}
	return nil
}
