package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Returns v in the "vMAJOR.MINOR.PATCH[-PRERELEASE]" form semver compares.
//
// A missing "v" prefix is added, missing minor and patch numbers become
// zero, and a pre-release suffix written without a separator, as in
// "2.2.0rc1", gets one. The result is not valid semver when v cannot be
// read as a version.
func Semver(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if semver.IsValid(v) {
		return semver.Canonical(v)
	}

	i := 1
	for i < len(v) && (v[i] == '.' || (v[i] >= '0' && v[i] <= '9')) {
		i++
	}
	core, suffix := strings.TrimSuffix(v[:i], "."), v[i:]
	if suffix == "" || strings.HasPrefix(suffix, "-") || strings.HasPrefix(suffix, "+") {
		return v
	}
	if c := core + "-" + suffix; semver.IsValid(c) {
		return semver.Canonical(c)
	}
	return v
}

// Reports whether v can be read as a semantic version.
func IsSemver(v string) bool {
	return semver.IsValid(Semver(v))
}

// Reports whether version v is at least min. Unreadable versions never
// satisfy a minimum.
func AtLeast(v, min string) bool {
	a, b := Semver(v), Semver(min)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return false
	}
	return semver.Compare(a, b) >= 0
}
