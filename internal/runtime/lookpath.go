package runtime

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Searches the list of directories for an executable named name.
//
// Names containing a path separator are resolved directly.
func lookPathIn(name, list string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		return exec.LookPath(name)
	}
	for _, dir := range filepath.SplitList(list) {
		if dir == "" {
			continue
		}
		if path, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return path, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}
