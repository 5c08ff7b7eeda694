//go:build !windows

package toolchain

import "context"

// Reads the Compile shell verb registered for a file type. The registry
// exists only on Windows; elsewhere every lookup fails.
type RegistryLocator struct{}

// Returns [MissingToolError].
func (RegistryLocator) Locate(_ context.Context, tool Tool) (Command, error) {
	return "", &MissingToolError{Tool: tool.Name}
}

// Returns [MissingToolError]; the runtime redistributables exist only on
// Windows.
func RedistDir() (string, error) {
	return "", &MissingToolError{Tool: "vc90-redist"}
}
