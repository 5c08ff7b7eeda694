package step

import (
	"fmt"
	"slices"
)

// Lookup table of build steps by name.
type Registry struct {
	steps map[string]Step
	order []string
}

// Creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Adds steps to the registry. Names must be unique.
func (r *Registry) Register(steps ...Step) error {
	for _, s := range steps {
		name := s.Name()
		if _, ok := r.steps[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateStep, name)
		}
		r.steps[name] = s
		r.order = append(r.order, name)
	}
	return nil
}

// Returns the step registered under name.
func (r *Registry) Lookup(name string) (Step, error) {
	s, ok := r.steps[name]
	if !ok {
		return nil, &UnknownStepError{Name: name}
	}
	return s, nil
}

// Returns the registered step names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Checks every declaration without running anything.
//
// Fails with [UnknownStepError] for a prerequisite that is not registered
// and with [PrerequisiteCycleError] for a step that transitively requires
// itself. Steps are visited in registration order so the reported error is
// stable.
func (r *Registry) Validate() error {
	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[string]int, len(r.steps))
	var stack []string

	var visit func(name, requiredBy string) error
	visit = func(name, requiredBy string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return &PrerequisiteCycleError{Path: cyclePath(stack, name)}
		}

		s, ok := r.steps[name]
		if !ok {
			return &UnknownStepError{Name: name, RequiredBy: requiredBy}
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, p := range s.Prerequisites() {
			if err := visit(p, name); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = visited
		return nil
	}

	for _, name := range r.order {
		if err := visit(name, ""); err != nil {
			return err
		}
	}
	return nil
}

// Returns the portion of stack starting at name, closed with name.
func cyclePath(stack []string, name string) []string {
	i := slices.Index(stack, name)
	path := slices.Clone(stack[i:])
	return append(path, name)
}
