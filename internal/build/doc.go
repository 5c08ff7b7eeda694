// Package build binds the project configuration to the concrete build steps.
//
// The steps are the ones the command line exposes: stamp-version,
// fetch-java-dependency, install, develop, freeze, build-installer, publish
// and test. [Build.Registry] declares them with their prerequisites and
// [Build.Run] executes one of them through a [step.Orchestrator], so that
// "install" stamps the version and fetches the dependency exactly once
// before copying the staged tree, and "build-installer" freezes the bundle
// first.
//
// Steps hand results to each other through the [Build]: the version
// resolved while stamping names the installer, and the installer path is
// what publish uploads. A Build therefore serves a single invocation.
//
// Example usage:
//
//	cfg, err := project.Load("cpbuild.yaml", paths.UserConfig())
//	if err != nil {
//	    return err
//	}
//	b := build.New(cfg, build.Options{DependencyVersion: "4.0.0"})
//	ran, err := b.Run(ctx, &step.Context{SourceDir: ".", BuildDir: "build/lib"}, build.StepInstall)
package build
