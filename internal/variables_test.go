package internal

import (
	"runtime"
	"testing"
)

// Sets the linker variables for the duration of a test.
func setBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, date
	t.Cleanup(func() { version, gitCommit, buildDate = oldV, oldC, oldD })
}

func TestVersionString(t *testing.T) {
	platform := runtime.GOOS + "/" + runtime.GOARCH

	tests := []struct {
		name                string
		version, commit, at string
		want                string
	}{
		{name: "local", want: "cpbuild (local) " + platform},
		{name: "missing commit", version: "v0.4.0", want: "cpbuild (local) " + platform},
		{name: "release", version: "v0.4.0", commit: "a1b2c3d4e5f6", want: "cpbuild 0.4.0 (a1b2c3d) " + platform},
		{name: "with date", version: "0.4.0", commit: "a1b2c3d", at: "2026-10-01", want: "cpbuild 0.4.0 (a1b2c3d, 2026-10-01) " + platform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuild(t, tt.version, tt.commit, tt.at)
			if got := VersionString(); got != tt.want {
				t.Fatalf("VersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionUnset(t *testing.T) {
	setBuild(t, "  ", "", "")
	if got := Version(); got != unset {
		t.Fatalf("Version() = %q, want %q", got, unset)
	}
	if got := GitCommit(); got != unset {
		t.Fatalf("GitCommit() = %q, want %q", got, unset)
	}
}
