package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/cellprofiler/cpbuild/internal/version"
	"gopkg.in/yaml.v3"
)

// Build configuration of the packaged application.
type Config struct {
	Name        string            `yaml:"name"`                   // Product name, e.g. "CellProfiler".
	Version     string            `yaml:"version"`                // Dotted release version.
	Commit      string            `yaml:"commit,omitempty"`       // Source revision folded into the internal version.
	EntryScript string            `yaml:"entry_script"`           // Script frozen into the main executable.
	SearchPaths []string          `yaml:"search_paths,omitempty"` // Directories prepended to PATH of child processes.
	Tools       map[string]string `yaml:"tools,omitempty"`        // Tool name to command line, e.g. "iscc".

	Dependency Dependency `yaml:"dependency"`
	Freeze     Freeze     `yaml:"freeze"`
	Installer  Installer  `yaml:"installer"`
	Test       Test       `yaml:"test"`
	Publish    Publish    `yaml:"publish"`
}

// The versioned binary dependency fetched at build time.
type Dependency struct {
	Version     string `yaml:"version,omitempty"`      // Release tag; the CLI flag takes precedence.
	URLTemplate string `yaml:"url_template,omitempty"` // "{tag}" is replaced by the version.
	Namespace   string `yaml:"namespace,omitempty"`
	Artifact    string `yaml:"artifact,omitempty"`
	Digest      string `yaml:"digest,omitempty"` // Expected digest, e.g. "sha256:…".
}

// Settings for freezing the application into a native bundle.
type Freeze struct {
	Command     []string    `yaml:"command"`                // Freezer argv; the manifest path is appended.
	DistDir     string      `yaml:"dist_dir"`               // Bundle directory, relative to the source tree.
	Executable  string      `yaml:"executable"`             // Name of the frozen executable inside DistDir.
	Artwork     string      `yaml:"artwork"`                // Glob of artwork assets.
	MetadataDir string      `yaml:"metadata_dir"`           // Package directory receiving the version metadata.
	Includes    []string    `yaml:"includes,omitempty"`     // Modules always passed to the freezer.
	DataFiles   []DataFiles `yaml:"data_files,omitempty"`   // Additional always-included files.
	Libraries   []Library   `yaml:"libraries,omitempty"`    // Version-gated library rules.
	Component   Component   `yaml:"component,omitempty"`    // Optional component.
	RedistDir   string      `yaml:"redist_dir,omitempty"`   // Runtime redistributables; the CLI flag takes precedence.
	RedistDest  string      `yaml:"redist_dest"`            // Bundle directory for the redistributables.
	ArchiveName string      `yaml:"archive_name,omitempty"` // Base name of the optional bundle archive.
}

// A destination directory and the globs whose matches are copied there.
type DataFiles struct {
	Dest    string   `yaml:"dest"`
	Sources []string `yaml:"sources"`
}

// Bundle rule applied when a library's detected version meets MinVersion.
type Library struct {
	Name       string   `yaml:"name"`
	MinVersion string   `yaml:"min_version"`
	Includes   []string `yaml:"includes,omitempty"` // Modules added to the freezer includes.
	Pinned     []string `yaml:"pinned,omitempty"`   // Binaries copied to the bundle root unrenamed.
}

// An optional component whose resources are bundled on request.
type Component struct {
	Name       string   `yaml:"name,omitempty"`
	Root       string   `yaml:"root,omitempty"`       // Resource root directory.
	Extensions []string `yaml:"extensions,omitempty"` // Resource suffixes kept, compared case-insensitively.
	Pinned     []string `yaml:"pinned,omitempty"`     // Native modules copied to the bundle root unrenamed.
	MenuEntry  string   `yaml:"menu_entry,omitempty"` // Installer Start-menu line.
}

// Settings for compiling the installer.
type Installer struct {
	Template32 string `yaml:"template_32"` // Script for 32-bit hosts.
	Template64 string `yaml:"template_64"` // Script for 64-bit hosts.
	OutputDir  string `yaml:"output_dir"`
	Name       string `yaml:"name,omitempty"` // Output base name; defaults to "<name>-<version>".
	Extension  string `yaml:"extension"`      // Suffix of the compiled installer.
	Compiler   string `yaml:"compiler"`       // Tool name looked up through the locator.
	FileType   string `yaml:"file_type"`      // Registry file type of the installer script.
}

// Settings for the test pass.
type Test struct {
	Command []string `yaml:"command"`       // Suite argv; CLI arguments are appended.
	Env     []string `yaml:"env,omitempty"` // Environment forcing single-threaded workers.
	Sidecar Sidecar  `yaml:"sidecar,omitempty"`
}

// A service started before the suite and stopped after it.
type Sidecar struct {
	Name      string        `yaml:"name,omitempty"`
	Command   []string      `yaml:"command,omitempty"`   // Host process argv.
	Image     string        `yaml:"image,omitempty"`     // Container image reference.
	Archive   string        `yaml:"archive,omitempty"`   // OCI archive imported instead of pulling Image.
	Env       []string      `yaml:"env,omitempty"`       // Additional environment.
	Ready     []string      `yaml:"ready,omitempty"`     // Container readiness probe argv.
	Address   string        `yaml:"address,omitempty"`   // containerd socket.
	Namespace string        `yaml:"namespace,omitempty"` // containerd namespace.
	Grace     time.Duration `yaml:"grace,omitempty"`     // Time allowed to exit after SIGTERM.
}

// Configured when the sidecar runs on the host.
func (s Sidecar) IsProcess() bool { return len(s.Command) > 0 }

// Configured when the sidecar runs in a container.
func (s Sidecar) IsContainer() bool { return s.Image != "" || s.Archive != "" }

// S3-compatible storage the installer is published to.
type Publish struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"` // Object key prefix.
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"` // Use plain HTTP.
}

// Returns the configuration used for fields a project file leaves out.
func Default() Config {
	return Config{
		Name:        "CellProfiler",
		EntryScript: "CellProfiler.py",
		Freeze: Freeze{
			Command:     []string{"python", "setup.py", "py2exe"},
			DistDir:     paths.DefaultDistDir,
			Executable:  "CellProfiler.exe",
			Artwork:     "artwork/*",
			MetadataDir: "cellprofiler",
			RedistDest:  "Microsoft.VC90.CRT",
			Component: Component{
				Extensions: []string{".ui", ".png"},
			},
		},
		Installer: Installer{
			Template32: "CellProfiler.iss",
			Template64: "CellProfiler64.iss",
			OutputDir:  "output",
			Extension:  ".exe",
			Compiler:   "iscc",
			FileType:   "InnoSetupScriptFile",
		},
		Test: Test{
			Command: []string{"pytest"},
			Env: []string{
				"OMP_NUM_THREADS=1",
				"OPENBLAS_NUM_THREADS=1",
				"MKL_NUM_THREADS=1",
			},
			Sidecar: Sidecar{
				Name:      "jvm",
				Address:   "/run/containerd/containerd.sock",
				Namespace: "cpbuild",
				Grace:     10 * time.Second,
			},
		},
	}
}

// Loads the project file and overlays the user file.
//
// A missing project file yields [Default] when path is the default name and
// an error otherwise. A missing user file is ignored.
func Load(path, userPath string) (*Config, error) {
	cfg := Default()

	if err := decodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || path != paths.DefaultProjectFile {
			return nil, err
		}
		slog.Debug("no project file, using defaults", "path", path)
	}

	if userPath != "" {
		if err := decodeFile(userPath, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parses a project file on top of [Default].
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("configuration loaded", "path", path)
	return nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}

// Checks that the configuration can drive a build.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &FieldError{Field: "name", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(c.Freeze.DistDir) == "" {
		return &FieldError{Field: "freeze.dist_dir", Reason: "must be non-empty"}
	}
	if c.Installer.Template32 == "" || c.Installer.Template64 == "" {
		return &FieldError{Field: "installer.template_32/template_64", Reason: "must be non-empty"}
	}

	seen := make(map[string]bool, len(c.Freeze.Libraries))
	for i, lib := range c.Freeze.Libraries {
		field := fmt.Sprintf("freeze.libraries[%d]", i)
		if strings.TrimSpace(lib.Name) == "" {
			return &FieldError{Field: field + ".name", Reason: "must be non-empty"}
		}
		if seen[lib.Name] {
			return &FieldError{Field: field + ".name", Reason: fmt.Sprintf("duplicates %q", lib.Name)}
		}
		seen[lib.Name] = true
		if !version.IsSemver(lib.MinVersion) {
			return &FieldError{Field: field + ".min_version", Reason: fmt.Sprintf("is not a version: %q", lib.MinVersion)}
		}
	}

	for i, df := range c.Freeze.DataFiles {
		if strings.TrimSpace(df.Dest) == "" {
			return &FieldError{Field: fmt.Sprintf("freeze.data_files[%d].dest", i), Reason: "must be non-empty"}
		}
	}

	if c.Test.Sidecar.IsProcess() && c.Test.Sidecar.IsContainer() {
		return &FieldError{Field: "test.sidecar", Reason: "must set either command or image/archive, not both"}
	}
	if c.Test.Sidecar.Grace < 0 {
		return &FieldError{Field: "test.sidecar.grace", Reason: "must not be negative"}
	}

	return nil
}

// Returns the installer base name, "<name>-<version>" unless configured.
// An empty version uses the project version.
func (c *Config) InstallerName(version string) string {
	if c.Installer.Name != "" {
		return c.Installer.Name
	}
	if version == "" {
		version = c.Version
	}
	return c.Name + "-" + version
}
