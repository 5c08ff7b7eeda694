package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "cpbuild"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Project file read when --config is not given.
	DefaultProjectFile = "cpbuild.yaml"

	// Staged build output directory, relative to the source tree.
	DefaultBuildDir = "build/lib"

	// Directory the frozen bundle is written to, relative to the source tree.
	DefaultDistDir = "dist"
)

// Path to the per-user configuration file overlayed on the project file.
//
//	Linux:   $XDG_CONFIG_HOME/cpbuild/config.yaml
//	macOS:   ~/Library/Application Support/cpbuild/config.yaml
//	Windows: %LOCALAPPDATA%\cpbuild\config.yaml
func UserConfig() string {
	return filepath.Join(xdg.ConfigHome, toolName, "config.yaml")
}

// Directory for state that outlives a single invocation, such as sidecar
// logs from test passes.
//
//	Linux:   $XDG_STATE_HOME/cpbuild
//	macOS:   ~/Library/Application Support/cpbuild
func State() string {
	return filepath.Join(xdg.StateHome, toolName)
}

// Path to the log file a sidecar process writes to.
func SidecarLog(name string) string {
	return filepath.Join(State(), "sidecar-"+name+".log")
}
