package bundle

import (
	"errors"
	"fmt"
)

var (
	ErrSealed        = errors.New("manifest is sealed")
	ErrMissingInput  = errors.New("required bundle input is missing")
	ErrFreeze        = errors.New("freeze failed")
	ErrArchiveFormat = errors.New("unsupported archive format")
	ErrPinConflict   = errors.New("file is already bundled unpinned")
)

// Returned when the freezer cannot produce the bundle.
//
// ExitCode and Stderr are set when the freezer process ran and exited
// non-zero.
type FreezeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *FreezeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrFreeze, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit code %d: %s", ErrFreeze, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit code %d", ErrFreeze, e.ExitCode)
}

func (e *FreezeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFreeze}
	}
	return []error{ErrFreeze, e.Err}
}
