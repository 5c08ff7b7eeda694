package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/cellprofiler/cpbuild/internal/fetch"
	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/cellprofiler/cpbuild/internal/version"
)

// Selects the conditional parts of a bundle.
type Flags struct {
	Platform      string            // Target OS, e.g. "windows". Empty means the host.
	WithComponent bool              // Include the optional component.
	Libraries     map[string]string // Detected library versions by name.
	RedistDir     string            // Runtime redistributables directory. Empty skips them.
}

// Produces the frozen executable bundle from a sealed manifest.
type Freezer interface {
	Freeze(ctx context.Context, bundleDir string, m *Manifest) error
}

// Collects bundle inputs into a [Manifest] and hands it to a [Freezer].
type Assembler struct {
	SourceDir   string         // Source tree; relative inputs resolve against it.
	InputRoot   string         // Root holding the version metadata and the fetched dependency.
	EntryScript string         // Script frozen into the executable, relative to SourceDir.
	Config      project.Freeze // Bundle rules.
	Dependency  fetch.Options  // Locates the fetched dependency under InputRoot.
	Freezer     Freezer
}

// Builds the manifest and freezes the bundle into bundleDir.
//
// Any failure after the manifest is complete is reported as [FreezeError].
func (a *Assembler) Assemble(ctx context.Context, bundleDir string, flags Flags) (*Manifest, error) {
	m, err := a.Manifest(flags)
	if err != nil {
		return nil, err
	}

	slog.Info("freezing bundle", "dir", bundleDir, "entries", len(m.Entries), "includes", len(m.Includes))

	if err := a.Freezer.Freeze(ctx, bundleDir, m); err != nil {
		var fe *FreezeError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FreezeError{Err: err}
	}

	return m, nil
}

// Builds and seals the manifest for flags without freezing.
//
// Mandatory inputs are always added first, followed by the library rules in
// configuration order, the optional component and the redistributables.
// Enabling a flag therefore only appends to the manifest. Inputs for flags
// that were not requested are never looked at.
func (a *Assembler) Manifest(flags Flags) (*Manifest, error) {
	if flags.Platform == "" {
		flags.Platform = goruntime.GOOS
	}

	m := NewManifest()

	if err := a.addMandatory(m); err != nil {
		return nil, err
	}
	if err := a.addLibraries(m, flags.Libraries); err != nil {
		return nil, err
	}
	if flags.WithComponent {
		if err := a.addComponent(m); err != nil {
			return nil, err
		}
	}
	if flags.RedistDir != "" {
		if err := a.addRedist(m, flags.Platform, flags.RedistDir); err != nil {
			return nil, err
		}
	}

	m.Seal()
	return m, nil
}

// Adds artwork, version metadata, the entry script, dependency JARs and the
// configured data files.
func (a *Assembler) addMandatory(m *Manifest) error {
	artwork, err := a.glob(a.Config.Artwork)
	if err != nil {
		return err
	}
	if len(artwork) == 0 {
		slog.Warn("no artwork found", "pattern", a.Config.Artwork)
	}
	if err := m.Add("artwork", artwork...); err != nil {
		return err
	}

	metadata, err := filepath.Abs(filepath.Join(a.InputRoot, a.Config.MetadataDir, version.Filename))
	if err != nil {
		return err
	}
	if err := requireFile(metadata); err != nil {
		return err
	}
	if err := m.Add(a.Config.MetadataDir, metadata); err != nil {
		return err
	}

	if a.EntryScript != "" {
		script := a.resolve(a.EntryScript)
		if err := requireFile(script); err != nil {
			return err
		}
		if err := m.SetScript(script); err != nil {
			return err
		}
	}

	if err := a.addDependency(m); err != nil {
		return err
	}

	for _, df := range a.Config.DataFiles {
		var files []string
		for _, pattern := range df.Sources {
			matches, err := a.glob(pattern)
			if err != nil {
				return err
			}
			files = append(files, matches...)
		}
		if err := m.Add(df.Dest, files...); err != nil {
			return err
		}
	}

	return m.Include(a.Config.Includes...)
}

// Adds the dependency JARs and the classpath manifest.
func (a *Assembler) addDependency(m *Manifest) error {
	f := fetch.New(nil, a.Dependency)
	dir, err := filepath.Abs(f.Dir(a.InputRoot))
	if err != nil {
		return err
	}

	opts := f.Options()
	classpath := filepath.Join(dir, opts.ClasspathFile)
	if err := requireFile(classpath); err != nil {
		return err
	}

	jars, err := filepath.Glob(filepath.Join(dir, opts.Artifact+"*.jar"))
	if err != nil {
		return err
	}

	// Entries recorded elsewhere, such as a manifest written in-place by a
	// development checkout, are bundled too.
	recorded, err := fetch.ReadClasspath(a.InputRoot, a.Dependency)
	if err != nil {
		return err
	}
	for _, r := range recorded {
		if _, err := os.Stat(r); err == nil && !slices.Contains(jars, r) {
			jars = append(jars, r)
		}
	}

	dest := filepath.ToSlash(filepath.Join(opts.Namespace, "jars"))
	return m.Add(dest, append(jars, classpath)...)
}

// Applies every library rule whose detected version meets its minimum.
func (a *Assembler) addLibraries(m *Manifest, detected map[string]string) error {
	for _, lib := range a.Config.Libraries {
		v, ok := detected[lib.Name]
		if !ok {
			slog.Debug("library not detected", "library", lib.Name)
			continue
		}
		if !version.AtLeast(v, lib.MinVersion) {
			slog.Debug("library below threshold", "library", lib.Name, "version", v, "min", lib.MinVersion)
			continue
		}

		slog.Debug("library rule applies", "library", lib.Name, "version", v)
		if err := m.Include(lib.Includes...); err != nil {
			return err
		}
		if err := a.addPinned(m, lib.Pinned); err != nil {
			return err
		}
	}
	return nil
}

// Adds the optional component's resource tree and pinned modules.
//
// Each directory under the resource root contributes its matching files to
// the destination given by its path relative to the root's parent, so the
// tree keeps the component's package name.
func (a *Assembler) addComponent(m *Manifest) error {
	c := a.Config.Component
	if c.Root == "" {
		return fmt.Errorf("%w: optional component requested but no root is configured", ErrMissingInput)
	}

	root := a.resolve(c.Root)
	parent := filepath.Dir(root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}

		var files []string
		for _, e := range entries {
			if !e.IsDir() && hasExtension(e.Name(), c.Extensions) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		if len(files) == 0 {
			return nil
		}

		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		return m.Add(rel, files...)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInput, root)
		}
		return err
	}

	return a.addPinned(m, c.Pinned)
}

// Adds every file in the redistributables directory.
func (a *Assembler) addRedist(m *Manifest, platform, dir string) error {
	if platform != "windows" {
		slog.Warn("ignoring runtime redistributables for non-Windows target", "platform", platform)
		return nil
	}

	dir = a.resolve(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInput, dir)
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return m.Add(a.Config.RedistDest, files...)
}

// Adds pinned binaries at the bundle root and keeps the freezer off them.
func (a *Assembler) addPinned(m *Manifest, pinned []string) error {
	for _, p := range pinned {
		path := a.resolve(p)
		if err := requireFile(path); err != nil {
			return err
		}
		if err := m.AddPinned(Root, path); err != nil {
			return err
		}
		if err := m.Exclude(filepath.Base(path)); err != nil {
			return err
		}
	}
	return nil
}

// Returns the regular files matching pattern, resolved against SourceDir.
func (a *Assembler) glob(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(a.resolve(pattern))
	if err != nil {
		return nil, err
	}

	files := matches[:0]
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
			files = append(files, match)
		}
	}
	return files, nil
}

// Returns path made absolute against SourceDir.
func (a *Assembler) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.SourceDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	return nil
}

func hasExtension(name string, exts []string) bool {
	name = strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
