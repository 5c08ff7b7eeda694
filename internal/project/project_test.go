package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
name: CellProfiler
version: 2.2.0rc1
dependency:
  version: 1.0.3
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Dependency.Version != "1.0.3" {
		t.Fatalf("dependency.version = %q, want %q", cfg.Dependency.Version, "1.0.3")
	}
	if cfg.Freeze.DistDir != "dist" {
		t.Fatalf("freeze.dist_dir = %q, want default %q", cfg.Freeze.DistDir, "dist")
	}
	if diff := cmp.Diff([]string{".ui", ".png"}, cfg.Freeze.Component.Extensions); diff != "" {
		t.Fatalf("component extensions (-want +got):\n%s", diff)
	}
	if got := cfg.InstallerName(""); got != "CellProfiler-2.2.0rc1" {
		t.Fatalf("InstallerName = %q, want %q", got, "CellProfiler-2.2.0rc1")
	}
	if got := cfg.InstallerName("2.2.0"); got != "CellProfiler-2.2.0" {
		t.Fatalf("InstallerName = %q, want %q", got, "CellProfiler-2.2.0")
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Fatalf("empty file differs from defaults (-want +got):\n%s", diff)
	}
}

func TestParseSidecar(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
test:
  sidecar:
    image: docker.io/library/eclipse-temurin:8-jre
    grace: 3s
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := cfg.Test.Sidecar
	if !sc.IsContainer() || sc.IsProcess() {
		t.Fatalf("sidecar kind: container=%v process=%v", sc.IsContainer(), sc.IsProcess())
	}
	if sc.Grace != 3*time.Second {
		t.Fatalf("grace = %v, want 3s", sc.Grace)
	}
	if sc.Namespace != "cpbuild" {
		t.Fatalf("namespace = %q, want default kept", sc.Namespace)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		field   string
	}{
		{
			name:    "unknown field",
			input:   "nmae: typo\n",
			wantErr: ErrParse,
		},
		{
			name:    "empty name",
			input:   "name: ''\n",
			wantErr: ErrInvalidConfig,
			field:   "name",
		},
		{
			name: "bad min version",
			input: `
freeze:
  libraries:
    - name: pyzmq
      min_version: fourteen
`,
			wantErr: ErrInvalidConfig,
			field:   "freeze.libraries[0].min_version",
		},
		{
			name: "duplicate library",
			input: `
freeze:
  libraries:
    - {name: pyzmq, min_version: 14.0.0}
    - {name: pyzmq, min_version: 15.0.0}
`,
			wantErr: ErrInvalidConfig,
			field:   "freeze.libraries[1].name",
		},
		{
			name: "both sidecar kinds",
			input: `
test:
  sidecar:
    command: [java, -jar, server.jar]
    image: openjdk
`,
			wantErr: ErrInvalidConfig,
			field:   "test.sidecar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.field == "" {
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want FieldError", err)
			}
			if fe.Field != tt.field {
				t.Fatalf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestLoadOverlaysUserFile(t *testing.T) {
	dir := t.TempDir()
	projectFile := filepath.Join(dir, "project.yaml")
	userFile := filepath.Join(dir, "user.yaml")

	os.WriteFile(projectFile, []byte(`
version: 2.2.0
search_paths: [/project/path]
publish:
  bucket: releases
`), 0o644)
	os.WriteFile(userFile, []byte(`
search_paths: [C:\zmq]
tools:
  iscc: '"C:\Inno\ISCC.exe" "%1"'
publish:
  access_key: AK
`), 0o644)

	cfg, err := Load(projectFile, userFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Version != "2.2.0" {
		t.Fatalf("version = %q, want %q", cfg.Version, "2.2.0")
	}
	if diff := cmp.Diff([]string{`C:\zmq`}, cfg.SearchPaths); diff != "" {
		t.Fatalf("search paths (-want +got):\n%s", diff)
	}
	if cfg.Publish.Bucket != "releases" || cfg.Publish.AccessKey != "AK" {
		t.Fatalf("publish = %+v, want bucket from project and key from user file", cfg.Publish)
	}
	if cfg.Tools["iscc"] == "" {
		t.Fatal("tools not loaded from user file")
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "absent.yaml"), ""); err == nil {
		t.Fatal("Load succeeded for an explicit missing project file")
	}

	// The default project file may be absent; the user file always may.
	t.Chdir(dir)
	cfg, err := Load("cpbuild.yaml", filepath.Join(dir, "absent-user.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "CellProfiler" {
		t.Fatalf("name = %q, want default", cfg.Name)
	}
}
