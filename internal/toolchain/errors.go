package toolchain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTool    = errors.New("tool not found")
	ErrInvalidCommand = errors.New("invalid command line")
)

// Returned when no locator knows the tool.
type MissingToolError struct {
	Tool string
	Err  error // Underlying lookup failure, if any.
}

func (e *MissingToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMissingTool, e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMissingTool, e.Tool)
}

func (e *MissingToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingTool}
	}
	return []error{ErrMissingTool, e.Err}
}
