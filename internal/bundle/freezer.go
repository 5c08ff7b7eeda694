package bundle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/cellprofiler/cpbuild/internal/runtime"
	"gopkg.in/yaml.v3"
)

// Name of the manifest file handed to the freezer command.
const ManifestFile = "cpbuild-manifest.yaml"

// Freezes by running an external command, then installs the manifest's
// data files into the bundle.
//
// The manifest is written as YAML next to the bundle directory and its path
// is appended to Command. The command is expected to produce the executable
// in the bundle directory; data files are copied afterwards so that pinned
// entries keep their exact names whatever the freezer does.
type ExternalFreezer struct {
	Command     []string       // Freezer argv.
	Dir         string         // Working directory of the command.
	SearchPaths []string       // Prepended to PATH of the command.
	Runner      runtime.Runner // Defaults to [runtime.Host].
}

// Implements [Freezer].
func (f *ExternalFreezer) Freeze(ctx context.Context, bundleDir string, m *Manifest) error {
	if len(f.Command) == 0 {
		return &FreezeError{Err: runtime.ErrEmptyCommand}
	}

	manifestPath, err := WriteManifest(filepath.Dir(filepath.Clean(bundleDir)), m)
	if err != nil {
		return &FreezeError{Err: err}
	}

	runner := f.Runner
	if runner == nil {
		runner = runtime.Host{}
	}

	args := append(append([]string(nil), f.Command...), manifestPath)
	res, err := runner.Run(ctx, runtime.Command{
		Args:        args,
		Dir:         f.Dir,
		SearchPaths: f.SearchPaths,
		Env:         []string{"CPBUILD_BUNDLE_DIR=" + bundleDir},
		Stdout:      logWriter{level: slog.LevelDebug},
	})
	if err != nil {
		return &FreezeError{Err: err}
	}
	if res.ExitCode != 0 {
		return &FreezeError{ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	if err := InstallDataFiles(bundleDir, m); err != nil {
		return &FreezeError{Err: err}
	}
	return nil
}

// Writes m as YAML into dir and returns the file path.
func WriteManifest(dir string, m *Manifest) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, buf.Bytes(), paths.DefaultFileMode); err != nil {
		return "", err
	}
	return path, nil
}

// Copies every manifest entry into bundleDir.
//
// Each source lands at "<bundleDir>/<dest>/<base name>". Pinned entries are
// copied the same way; the freezer has been told to leave them alone.
func InstallDataFiles(bundleDir string, m *Manifest) error {
	for _, e := range m.Entries {
		destDir := filepath.Join(bundleDir, filepath.FromSlash(e.Dest))
		for _, src := range e.Sources {
			if err := CopyTree(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
				return fmt.Errorf("install %s: %w", src, err)
			}
		}
	}
	return nil
}

// Forwards freezer output to the log line by line.
type logWriter struct {
	level slog.Level
}

func (w logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) > 0 {
			slog.Log(context.Background(), w.level, string(line), "source", "freezer")
		}
	}
	return len(p), nil
}
