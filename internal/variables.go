package internal

import (
	"fmt"
	"runtime"
	"strings"
)

const (

	// Name of the tool, used for directory naming and the command name.
	Name = "cpbuild"

	// Placeholder for a linker variable that was not set.
	unset = "(undefined)"
)

// Set with -ldflags "-X github.com/cellprofiler/cpbuild/internal.<name>=...".
var (
	version   = "" // Release of cpbuild itself, e.g. "v0.4.0".
	gitCommit = "" // Commit cpbuild was built from.
	buildDate = "" // RFC 3339 date of the build.

	rawQuiet   = "false" // Default for --quiet.
	rawDebug   = "false" // Default for --debug.
	rawVerbose = "false" // Default for --verbose.
)

// Returns the release of cpbuild without a "v" prefix, or "(undefined)".
func Version() string {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(version)), "v")
	if v == "" {
		return unset
	}
	return v
}

// Returns the first seven characters of the build commit, or "(undefined)".
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		return unset
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return c
}

// Reports whether the binary was built outside the release pipeline, i.e.
// without a version or commit.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" || strings.TrimSpace(gitCommit) == ""
}

// Returns the version line printed by "cpbuild version".
//
//	cpbuild 0.4.0 (a1b2c3d, 2026-10-01) linux/amd64
//	cpbuild (local) linux/amd64
func VersionString() string {
	platform := runtime.GOOS + "/" + runtime.GOARCH
	if IsLocal() {
		return fmt.Sprintf("%s (local) %s", Name, platform)
	}

	meta := GitCommit()
	if d := strings.TrimSpace(buildDate); d != "" {
		meta += ", " + d
	}
	return fmt.Sprintf("%s %s (%s) %s", Name, Version(), meta, platform)
}
