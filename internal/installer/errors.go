package installer

import (
	"errors"
	"fmt"
)

var (
	ErrCompilerNotRegistered = errors.New("installer compiler is not registered")
	ErrCompile               = errors.New("installer compilation failed")
	ErrMissingInput          = errors.New("installer input is missing")
)

// Returned when no locator knows the installer compiler.
type CompilerNotRegisteredError struct {
	Tool     string // Compiler tool name.
	FileType string // File type whose Compile verb was looked up.
	Err      error
}

func (e *CompilerNotRegisteredError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrCompilerNotRegistered, e.Tool)
	if e.FileType != "" {
		msg += fmt.Sprintf(` (no HKEY_CLASSES_ROOT\%s\shell\Compile\command entry)`, e.FileType)
	}
	return msg
}

func (e *CompilerNotRegisteredError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCompilerNotRegistered}
	}
	return []error{ErrCompilerNotRegistered, e.Err}
}

// Returned when the compiler exits non-zero or cannot be run.
type CompileError struct {
	Template string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCompile, e.Template, e.Err)
	}
	return fmt.Sprintf("%s: %s: exit code %d: %s", ErrCompile, e.Template, e.ExitCode, e.Stderr)
}

func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCompile}
	}
	return []error{ErrCompile, e.Err}
}
