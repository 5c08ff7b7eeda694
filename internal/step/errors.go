package step

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStep       = errors.New("unknown build step")
	ErrPrerequisiteCycle = errors.New("prerequisite cycle")
	ErrDuplicateStep     = errors.New("duplicate build step")
	ErrStepFailed        = errors.New("build step failed")
)

// Returned when a step name, or a prerequisite named by a step, is not
// registered.
type UnknownStepError struct {
	Name       string // Name that could not be resolved.
	RequiredBy string // Step that listed it as a prerequisite, empty for a direct invocation.
}

func (e *UnknownStepError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("%s: %q", ErrUnknownStep, e.Name)
	}
	return fmt.Sprintf("%s: %q (required by %q)", ErrUnknownStep, e.Name, e.RequiredBy)
}

func (e *UnknownStepError) Unwrap() error { return ErrUnknownStep }

// Returned when prerequisite resolution reaches a step that is still in
// progress on the current resolution stack.
type PrerequisiteCycleError struct {
	Path []string // Steps forming the cycle; the first and last entries are equal.
}

func (e *PrerequisiteCycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPrerequisiteCycle, strings.Join(e.Path, " -> "))
}

func (e *PrerequisiteCycleError) Unwrap() error { return ErrPrerequisiteCycle }

// Wraps an error returned by a step body with the name of the step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause so callers can
// match either with errors.Is / errors.As.
func (e *StepError) Unwrap() []error { return []error{ErrStepFailed, e.Err} }
