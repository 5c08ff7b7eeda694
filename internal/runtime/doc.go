// Package runtime runs the external processes build steps depend on.
//
// [Host] runs commands on the build machine. Each command gets an explicit
// environment: overrides are merged on top of the current process
// environment and extra search paths are prepended to PATH of the child
// only, so the builder's own environment is never mutated. A non-zero exit
// status is reported in [ExecResult] rather than as an error; callers decide
// what a failure means for their step.
//
// [Host.Start] launches long-running processes, such as a JVM sidecar for
// the test suite, that are later stopped with [Process.Stop].
//
// A [Runtime] connects to a containerd daemon for sidecars shipped as
// container images. Images are imported from OCI archives or referenced by
// tag, and each [Container] runs the image's own entrypoint until stopped.
//
// Example usage:
//
//	res, err := runtime.Host{}.Run(ctx, runtime.Command{
//	    Args:        []string{"pyinstaller", "cellprofiler.spec"},
//	    SearchPaths: []string{`C:\zmq\lib`},
//	})
//	if err != nil {
//	    return err
//	}
//	if res.ExitCode != 0 {
//	    return fmt.Errorf("freezer failed: %s", res.Stderr)
//	}
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "cpbuild")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.StartFromTag(ctx, "docker.io/library/openjdk:8", "cpbuild-jvm", runtime.ContainerOptions{})
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(context.Background())
package runtime
