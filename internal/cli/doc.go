// Parses flags, configures logging and runs the cpbuild commands.
//
// Global flags:
//
//	-q, --quiet       Suppress informational output.
//	-v, --verbose     Enable verbose output.
//	-d, --debug       Enable debug output.
//	-c, --config      Project file (default cpbuild.yaml).
//	    --source-dir  Source tree the steps operate on.
//	    --build-dir   Staged build output, relative to the source tree.
//
// Each build command runs one step together with its prerequisites, for
// example "cpbuild build-installer" finds the installer compiler, stamps the
// version, fetches the Java dependency and freezes the bundle before
// compiling the installer. Flags
// override build-time defaults set via linker flags; after parsing, the
// global logger is reconfigured to reflect the final level and verbosity.
//
// The test command exits with the suite's status through [ExitError].
package cli
