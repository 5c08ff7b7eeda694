package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Placeholder for the input file in a registered command line.
const Placeholder = "%1"

// Describes a tool to look up.
type Tool struct {
	Name     string // Executable or configuration key, e.g. "iscc".
	FileType string // Windows file type whose Compile verb runs the tool.
}

// A registered command line, e.g. `"C:\Program Files\ISCC.exe" "%1"`.
type Command string

// Returns the argument vector with every placeholder replaced by arg.
//
// A command line without a placeholder gets arg appended. Words are split
// on whitespace and double quotes group words. Backslashes are kept
// literally so Windows paths survive the split.
func (c Command) Argv(arg string) ([]string, error) {
	line := string(c)
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommand)
	}

	// shlex treats backslash as an escape character.
	escaped := strings.ReplaceAll(line, `\`, `\\`)
	fields, err := shlex.Split(escaped)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCommand, line, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, line)
	}

	replaced := false
	for i, f := range fields {
		if strings.Contains(f, Placeholder) {
			fields[i] = strings.ReplaceAll(f, Placeholder, arg)
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, arg)
	}
	return fields, nil
}

// Finds the command line for a tool.
type Locator interface {
	Locate(ctx context.Context, tool Tool) (Command, error)
}

// Maps tool names to configured command lines.
type StaticLocator map[string]string

// Returns the configured command line for tool.Name.
func (s StaticLocator) Locate(_ context.Context, tool Tool) (Command, error) {
	line, ok := s[tool.Name]
	if !ok || strings.TrimSpace(line) == "" {
		return "", &MissingToolError{Tool: tool.Name}
	}
	return Command(line), nil
}

// Looks tools up on the host PATH.
type PathLocator struct{}

// Returns the quoted executable path followed by the placeholder.
func (PathLocator) Locate(_ context.Context, tool Tool) (Command, error) {
	path, err := exec.LookPath(tool.Name)
	if err != nil {
		return "", &MissingToolError{Tool: tool.Name, Err: err}
	}
	return Command(`"` + path + `" "` + Placeholder + `"`), nil
}

// Tries each locator in order and returns the first command found.
type Chain []Locator

// Returns the first command found. Lookup failures other than
// [ErrMissingTool] stop the search.
func (c Chain) Locate(ctx context.Context, tool Tool) (Command, error) {
	for _, l := range c {
		cmd, err := l.Locate(ctx, tool)
		if err == nil {
			return cmd, nil
		}
		if !errors.Is(err, ErrMissingTool) {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return "", &MissingToolError{Tool: tool.Name}
}
