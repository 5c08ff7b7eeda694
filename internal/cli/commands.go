package cli

import (
	"context"
	"os"

	"github.com/cellprofiler/cpbuild/internal/build"
)

// Represents the 'cpbuild install' command.
type InstallCmd struct {
	Prefix            string `help:"Copy the staged tree into this directory." placeholder:"DIR"`
	DependencyVersion string `help:"Release tag of the Java dependency." placeholder:"TAG"`
}

// Executes the install command.
func (c *InstallCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepInstall, false, build.Options{
		Prefix:            c.Prefix,
		DependencyVersion: c.DependencyVersion,
		Progress:          progress(),
	})
	return err
}

// Represents the 'cpbuild develop' command.
type DevelopCmd struct {
	DependencyVersion string `help:"Release tag of the Java dependency." placeholder:"TAG"`
}

// Executes the develop command.
func (c *DevelopCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepDevelop, true, build.Options{
		DependencyVersion: c.DependencyVersion,
		Progress:          progress(),
	})
	return err
}

// Represents the 'cpbuild stamp-version' command.
type StampVersionCmd struct {
	InPlace bool   `help:"Write into the source tree instead of the build directory."`
	Version string `help:"Version to stamp instead of the project version." placeholder:"VERSION"`
}

// Executes the stamp-version command.
func (c *StampVersionCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepStampVersion, c.InPlace, build.Options{Version: c.Version})
	return err
}

// Represents the 'cpbuild fetch-java-dependency' command.
type FetchJavaDependencyCmd struct {
	DependencyVersion string `help:"Release tag of the Java dependency." placeholder:"TAG"`
	DependencyDigest  string `help:"Expected digest of the artifact, e.g. sha256:..." placeholder:"DIGEST"`
	InPlace           bool   `help:"Write into the source tree instead of the build directory."`
}

// Executes the fetch-java-dependency command.
func (c *FetchJavaDependencyCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepFetchDependency, c.InPlace, build.Options{
		DependencyVersion: c.DependencyVersion,
		DependencyDigest:  c.DependencyDigest,
		Progress:          progress(),
	})
	return err
}

// Represents the 'cpbuild test' command.
type TestCmd struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Arguments passed to the test command."`
}

// Executes the test command.
//
// A failing suite is reported through [ExitError] so the process exits with
// the suite's status.
func (c *TestCmd) Run(ctx context.Context) error {
	b, err := runStep(ctx, build.StepTest, false, build.Options{
		TestArgs: c.Args,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	if err != nil {
		return err
	}
	if code := b.TestStatus(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// Represents the 'cpbuild freeze' command.
type FreezeCmd struct {
	RedistDir             string            `help:"Directory holding the runtime redistributables." placeholder:"DIR"`
	WithOptionalComponent bool              `help:"Bundle the optional component."`
	Library               map[string]string `help:"Detected library version, e.g. numpy=1.9.1. Repeatable." placeholder:"NAME=VERSION"`
	Archive               string            `help:"Also pack the bundle as tar.gz, tar.xz or tar.zst." placeholder:"FORMAT"`
	Platform              string            `help:"Target operating system. Defaults to the host." placeholder:"OS"`
	DependencyVersion     string            `help:"Release tag of the Java dependency." placeholder:"TAG"`
}

// Executes the freeze command.
func (c *FreezeCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepFreeze, true, c.options())
	return err
}

func (c *FreezeCmd) options() build.Options {
	return build.Options{
		RedistDir:         c.RedistDir,
		WithComponent:     c.WithOptionalComponent,
		Libraries:         c.Library,
		Archive:           c.Archive,
		Platform:          c.Platform,
		DependencyVersion: c.DependencyVersion,
		Progress:          progress(),
	}
}

// Represents the 'cpbuild build-installer' command.
type BuildInstallerCmd struct {
	FreezeCmd `embed:""`

	OutputDir     string `help:"Directory receiving the installer." placeholder:"DIR"`
	InstallerName string `help:"Installer base name, without extension." placeholder:"NAME"`
	Force         bool   `help:"Compile even when the installer is up to date."`
}

// Executes the build-installer command.
func (c *BuildInstallerCmd) Run(ctx context.Context) error {
	_, err := runStep(ctx, build.StepBuildInstaller, false, c.options())
	return err
}

func (c *BuildInstallerCmd) options() build.Options {
	opts := c.FreezeCmd.options()
	opts.OutputDir = c.OutputDir
	opts.InstallerName = c.InstallerName
	opts.Force = c.Force
	return opts
}

// Represents the 'cpbuild publish' command.
type PublishCmd struct {
	BuildInstallerCmd `embed:""`

	Bucket string `help:"Bucket receiving the installer." placeholder:"BUCKET"`
}

// Executes the publish command.
func (c *PublishCmd) Run(ctx context.Context) error {
	opts := c.BuildInstallerCmd.options()
	opts.Bucket = c.Bucket
	_, err := runStep(ctx, build.StepPublish, false, opts)
	return err
}
