// Package step declares build steps and runs them in prerequisite order.
//
// A [Step] has a name, an ordered list of prerequisite step names, an output
// [Mode], and a body. Steps are collected in a [Registry]; an [Orchestrator]
// runs a named step after recursively running its prerequisites, at most once
// each per pass. Resolution is depth-first and sequential: there is no
// parallelism and no scheduling beyond the declared prerequisites.
//
// The [Context] carries per-invocation state (source tree, staged build
// directory, in-place flag, child process search paths) to every step body.
// A step declared with [InPlace] forces in-place output for itself and for
// the prerequisites it triggers.
//
// Example usage:
//
//	reg := step.NewRegistry()
//	reg.Register(
//	    &step.Definition{ID: "stamp-version", Body: stamp},
//	    &step.Definition{ID: "install", Requires: []string{"stamp-version"}, Body: install},
//	)
//	if err := reg.Validate(); err != nil {
//	    return err
//	}
//
//	o := step.NewOrchestrator(reg, &step.Context{SourceDir: ".", BuildDir: "build/lib"})
//	if err := o.Run(ctx, "install"); err != nil {
//	    return err
//	}
package step
