package project

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid project configuration")
	ErrParse         = errors.New("cannot parse project configuration")
)

// Returned when a configuration field has an unusable value.
type FieldError struct {
	Field  string // Dotted YAML path, e.g. "freeze.libraries[0].min_version".
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidConfig }
