// Package version resolves and stamps the version metadata consumed by the
// running application and by later build steps.
package version

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cellprofiler/cpbuild/internal/paths"
)

// Name of the metadata file written by [Stamp].
const Filename = "frozen_version"

// Length of the commit prefix used in the internal version.
const shortCommit = 7

const (
	keyInternal = "version_string"
	keyDotted   = "dotted_version"
)

var (
	ErrInvalidVersion = errors.New("invalid version")
	ErrWrite          = errors.New("cannot write version metadata")
)

// Dotted release numbers with an optional pre-release or local suffix, such
// as "2.2.0", "2.2.0rc1" or "3.0.0.dev4".
var dottedPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*([.\-+]?[0-9A-Za-z]+)*$`)

// Returned when the metadata directory or file cannot be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrWrite, e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }

// Resolved version metadata for one build invocation.
type Info struct {
	Dotted   string // Release version, e.g. "2.2.0rc1".
	Internal string // Derived version token, e.g. "2.2.0rc1+a1b2c3d".
}

// Resolves version metadata from a dotted version and an optional commit.
//
// The internal version is the dotted version suffixed with the first seven
// characters of the commit, or the dotted version alone when no commit is
// known.
func Resolve(dotted, commit string) (Info, error) {
	dotted = strings.TrimSpace(dotted)
	if dotted == "" {
		return Info{}, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	if !dottedPattern.MatchString(dotted) {
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidVersion, dotted)
	}

	internal := dotted
	if commit = strings.TrimSpace(commit); commit != "" {
		if len(commit) > shortCommit {
			commit = commit[:shortCommit]
		}
		internal = dotted + "+" + commit
	}

	return Info{Dotted: dotted, Internal: internal}, nil
}

// Writes the metadata file into targetDir, creating the directory if needed.
//
// The output depends only on info, so repeated calls produce byte-identical
// files.
func Stamp(targetDir string, info Info) (string, error) {
	if err := os.MkdirAll(targetDir, paths.DefaultDirMode); err != nil {
		return "", &WriteError{Path: targetDir, Err: err}
	}

	path := filepath.Join(targetDir, Filename)
	if err := os.WriteFile(path, encode(info), paths.DefaultFileMode); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	return path, nil
}

// Reads metadata previously written by [Stamp].
func Read(targetDir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(targetDir, Filename))
	if err != nil {
		return Info{}, err
	}

	var info Info
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case keyInternal:
			info.Internal = value
		case keyDotted:
			info.Dotted = value
		}
	}
	if info.Dotted == "" {
		return Info{}, fmt.Errorf("%w: %s has no %s", ErrInvalidVersion, Filename, keyDotted)
	}
	return info, scanner.Err()
}

func encode(info Info) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s=%s\n", keyInternal, info.Internal)
	fmt.Fprintf(&buf, "%s=%s\n", keyDotted, info.Dotted)
	return buf.Bytes()
}
