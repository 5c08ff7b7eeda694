package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cellprofiler/cpbuild/internal"
	"github.com/cellprofiler/cpbuild/internal/logging"
	"github.com/cellprofiler/cpbuild/internal/paths"
)

// Represents the root command for cpbuild.
var RootCmd struct {
	Quiet     bool   `short:"q" help:"Suppress informational output."`
	Verbose   bool   `short:"v" help:"Enable verbose output."`
	Debug     bool   `short:"d" help:"Enable debug output."`
	Config    string `short:"c" help:"Project file." default:"${project_file}" placeholder:"FILE"`
	SourceDir string `help:"Source tree the steps operate on." default:"." placeholder:"DIR"`
	BuildDir  string `help:"Staged build output, relative to the source tree." default:"${build_dir}" placeholder:"DIR"`

	Install             InstallCmd             `cmd:"" help:"Stage the version metadata and dependency, then install the staged tree."`
	Develop             DevelopCmd             `cmd:"" help:"Prepare the source tree for development use."`
	StampVersion        StampVersionCmd        `cmd:"" name:"stamp-version" help:"Write the version metadata file."`
	FetchJavaDependency FetchJavaDependencyCmd `cmd:"" name:"fetch-java-dependency" help:"Download the versioned JAR dependency into the cache."`
	Test                TestCmd                `cmd:"" help:"Run the test suite with its sidecar."`
	Freeze              FreezeCmd              `cmd:"" help:"Freeze the application into a native bundle."`
	BuildInstaller      BuildInstallerCmd      `cmd:"" name:"build-installer" help:"Compile the installer for the frozen bundle."`
	Publish             PublishCmd             `cmd:"" help:"Upload the installer to object storage."`
	Version             VersionCmd             `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Build-step orchestration for CellProfiler.\n\nStamps the version, fetches the Java dependency, freezes the application and compiles its installer."),
		kong.UsageOnError(),
		kong.Vars{
			"version":      internal.VersionString(),
			"project_file": paths.DefaultProjectFile,
			"build_dir":    paths.DefaultBuildDir,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	handler, ok := slog.Default().Handler().(*logging.Handler)
	if !ok {
		return // Not a logging.Handler, nothing to configure
	}

	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	if debug {
		handler.SetLevel(slog.LevelDebug)
	} else if quiet {
		handler.SetLevel(slog.LevelWarn)
	} else {
		handler.SetLevel(slog.LevelInfo)
	}

	internal.SetDebug(debug)
	internal.SetQuiet(quiet)
	internal.SetVerbose(verbose)

	handler.SetVerbose(verbose)
	handler.SetStream(os.Stderr, logging.IsTerminal(os.Stderr) && !internal.IsNoColor())
	handler.Flush()
}
