// Package harness runs the test suite with its supporting services.
//
// Some suites need a service running next to them, such as a JVM the code
// under test talks to. A [Sidecar] is started before the suite and stopped
// afterwards no matter how the suite ends. Sidecars run either as host
// processes ([ProcessSidecar]) or as containerd containers
// ([ContainerSidecar]).
//
// The suite is a [CommandSuite] for external test runners or a [SuiteFunc]
// for suites driven from Go. Either way it receives an explicit environment
// that keeps worker pools single-threaded, instead of patching global state.
//
// Example usage:
//
//	h := &harness.Harness{
//	    Sidecar: &harness.ProcessSidecar{Name: "jvm", Command: []string{"java", "-jar", "bridge.jar"}},
//	    Suite:   &harness.CommandSuite{Command: []string{"pytest"}},
//	    Env:     []string{"OMP_NUM_THREADS=1"},
//	}
//	code, err := h.Run(ctx, os.Args[1:])
package harness
