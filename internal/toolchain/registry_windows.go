//go:build windows

package toolchain

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

// Reads the Compile shell verb registered for a file type, i.e. the default
// value of HKEY_CLASSES_ROOT\<FileType>\shell\Compile\command.
type RegistryLocator struct{}

// Returns the registered Compile command for tool.FileType.
func (RegistryLocator) Locate(_ context.Context, tool Tool) (Command, error) {
	if tool.FileType == "" {
		return "", &MissingToolError{Tool: tool.Name}
	}

	path := fmt.Sprintf(`%s\shell\Compile\command`, tool.FileType)
	key, err := registry.OpenKey(registry.CLASSES_ROOT, path, registry.QUERY_VALUE)
	if err != nil {
		return "", &MissingToolError{Tool: tool.Name, Err: err}
	}
	defer key.Close()

	value, _, err := key.GetStringValue("")
	if err != nil {
		return "", &MissingToolError{Tool: tool.Name, Err: err}
	}
	if value == "" {
		return "", &MissingToolError{Tool: tool.Name}
	}
	return Command(value), nil
}

// Registry key recording the Visual C++ 2008 install location.
const vcSetupKey = `SOFTWARE\Wow6432Node\Microsoft\VisualStudio\9.0\Setup\VC`

// Returns the directory holding the Visual C++ 2008 runtime redistributables
// for 64-bit targets.
func RedistDir() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, vcSetupKey, registry.QUERY_VALUE)
	if err != nil {
		return "", &MissingToolError{Tool: "vc90-redist", Err: err}
	}
	defer key.Close()

	dir, _, err := key.GetStringValue("ProductDir")
	if err != nil {
		return "", &MissingToolError{Tool: "vc90-redist", Err: err}
	}
	return filepath.Join(dir, "redist", "amd64", "Microsoft.VC90.CRT"), nil
}
