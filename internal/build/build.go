package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	goruntime "runtime"

	"github.com/cellprofiler/cpbuild/internal/bundle"
	"github.com/cellprofiler/cpbuild/internal/fetch"
	"github.com/cellprofiler/cpbuild/internal/harness"
	"github.com/cellprofiler/cpbuild/internal/installer"
	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/cellprofiler/cpbuild/internal/runtime"
	"github.com/cellprofiler/cpbuild/internal/step"
	"github.com/cellprofiler/cpbuild/internal/toolchain"
	"github.com/cellprofiler/cpbuild/internal/version"
)

// Step names.
const (
	StepStampVersion    = "stamp-version"
	StepFetchDependency = "fetch-java-dependency"
	StepInstall         = "install"
	StepDevelop         = "develop"
	StepFreeze          = "freeze"
	StepLocateCompiler  = "locate-installer-compiler"
	StepBuildInstaller  = "build-installer"
	StepPublish         = "publish"
	StepTest            = "test"
)

// Per-invocation settings taken from the command line. Empty values fall
// back to the project configuration.
type Options struct {
	Version           string             // Overrides the project version.
	DependencyVersion string             // Overrides dependency.version.
	DependencyDigest  string             // Overrides dependency.digest.
	Progress          fetch.ProgressFunc // Download progress; nil disables it.
	Prefix            string             // Install destination; empty leaves the staged tree in place.
	Platform          string             // Target OS for the bundle; empty means the host.
	WithComponent     bool               // Bundle the optional component and its menu entry.
	Libraries         map[string]string  // Detected library versions by name.
	RedistDir         string             // Overrides freeze.redist_dir.
	Archive           string             // Bundle archive format; empty skips the archive.
	OutputDir         string             // Overrides installer.output_dir.
	InstallerName     string             // Overrides the installer base name.
	Force             bool               // Compile the installer even when up to date.
	Bucket            string             // Overrides publish.bucket.
	TestArgs          []string           // Appended to the test command.
	Stdout            io.Writer          // Receives test suite output.
	Stderr            io.Writer          // Receives test suite diagnostics.
}

// Binds a project configuration to the concrete build steps.
//
// A Build holds the values steps hand to each other within one pass, such
// as the resolved version and the installer path. Use a new Build for each
// invocation.
type Build struct {
	cfg  *project.Config
	opts Options

	Runner  runtime.Runner    // Runs the freezer, compiler and suite. Defaults to [runtime.Host].
	Locator toolchain.Locator // Finds the installer compiler. Defaults to [DefaultLocator].
	Client  *http.Client      // Dependency download client. Nil uses [fetch.NewHTTPClient].
	Suite   harness.Suite     // Overrides the configured test command.

	info       version.Info
	compiler   toolchain.Command
	download   *fetch.CachedDownload
	installer  *installer.Result
	testStatus int
}

// Creates a [Build] for cfg.
func New(cfg *project.Config, opts Options) *Build {
	if opts.Platform == "" {
		opts.Platform = goruntime.GOOS
	}
	return &Build{cfg: cfg, opts: opts}
}

// Returns the locator used when none is set: configured tool paths first,
// then the Windows file-type registry, then PATH.
func DefaultLocator(tools map[string]string) toolchain.Locator {
	return toolchain.Chain{
		toolchain.StaticLocator(tools),
		toolchain.RegistryLocator{},
		toolchain.PathLocator{},
	}
}

// Returns a registry holding every build step.
//
// The registry is validated before it is returned, so a broken declaration
// fails before any step runs.
func (b *Build) Registry() (*step.Registry, error) {
	reg := step.NewRegistry()
	err := reg.Register(
		&step.Definition{ID: StepStampVersion, Body: b.stampVersion},
		&step.Definition{ID: StepFetchDependency, Body: b.fetchDependency},
		&step.Definition{
			ID:       StepInstall,
			Requires: []string{StepStampVersion, StepFetchDependency},
			Body:     b.install,
		},
		&step.Definition{
			ID:       StepDevelop,
			Requires: []string{StepStampVersion, StepFetchDependency},
			Output:   step.InPlace,
			Body:     b.develop,
		},
		&step.Definition{
			ID:       StepFreeze,
			Requires: []string{StepStampVersion, StepFetchDependency},
			Output:   step.InPlace,
			Body:     b.freeze,
		},
		&step.Definition{ID: StepLocateCompiler, Body: b.locateCompiler},
		&step.Definition{
			ID:       StepBuildInstaller,
			Requires: []string{StepLocateCompiler, StepFreeze},
			Body:     b.buildInstaller,
		},
		&step.Definition{
			ID:       StepPublish,
			Requires: []string{StepBuildInstaller},
			Body:     b.publish,
		},
		&step.Definition{ID: StepTest, Body: b.test},
	)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Runs the named step and its prerequisites in one orchestration pass.
//
// Returns the names of the steps that ran, in order. Invalid options fail
// with [ErrInvalidOptions] before any step runs.
func (b *Build) Run(ctx context.Context, ec *step.Context, name string) ([]string, error) {
	if err := b.checkOptions(); err != nil {
		return nil, err
	}

	reg, err := b.Registry()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	o := step.NewOrchestrator(reg, ec)
	slog.Debug("starting pass", "run", o.RunID(), "step", name, "source", ec.SourceDir, "build", ec.BuildDir)

	if err := o.Run(ctx, name); err != nil {
		return o.Ran(), err
	}
	return o.Ran(), nil
}

// Rejects option combinations that would only fail after earlier steps ran.
func (b *Build) checkOptions() error {
	if b.opts.Archive != "" {
		if _, err := bundle.ParseFormat(b.opts.Archive); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}
	if b.opts.RedistDir != "" && b.opts.Platform != "windows" {
		return fmt.Errorf("%w: --redist-dir applies to windows targets only, target is %s", ErrInvalidOptions, b.opts.Platform)
	}
	return nil
}

// Version resolved by the stamp step in this pass.
func (b *Build) Version() version.Info {
	return b.info
}

// Exit status of the test suite, valid after the test step ran.
func (b *Build) TestStatus() int {
	return b.testStatus
}

func (b *Build) runner() runtime.Runner {
	if b.Runner == nil {
		return runtime.Host{}
	}
	return b.Runner
}

func (b *Build) locator() toolchain.Locator {
	if b.Locator == nil {
		return DefaultLocator(b.cfg.Tools)
	}
	return b.Locator
}
