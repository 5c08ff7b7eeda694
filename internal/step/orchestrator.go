package step

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Runs steps from a [Registry] within a single orchestration pass.
//
// Each step runs at most once per pass, however many steps require it.
// Steps run sequentially on the calling goroutine.
type Orchestrator struct {
	registry *Registry
	ec       *Context
	runID    string
	done     map[string]bool
	stack    []string
	ran      []string
}

// Creates an [Orchestrator] for one pass over the registry.
func NewOrchestrator(registry *Registry, ec *Context) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		ec:       ec,
		runID:    uuid.NewString(),
		done:     make(map[string]bool),
	}
}

// Identifier of this pass, included in every log record it emits.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Names of the steps executed so far, in execution order.
func (o *Orchestrator) Ran() []string {
	return slices.Clone(o.ran)
}

// Runs the named step after its prerequisites.
//
// Prerequisites are resolved depth-first in declaration order. A step that
// already completed in this pass is skipped. Fails with [UnknownStepError]
// when a name is not registered and with [PrerequisiteCycleError] when a
// step is reached again while it is still being resolved. The first failing
// step aborts the pass; its error is wrapped in [StepError].
func (o *Orchestrator) Run(ctx context.Context, name string) error {
	return o.resolve(ctx, name, "", o.ec)
}

func (o *Orchestrator) resolve(ctx context.Context, name, requiredBy string, ec *Context) error {
	if o.done[name] {
		slog.Debug("step already ran", "run", o.runID, "step", name)
		return nil
	}

	if slices.Contains(o.stack, name) {
		return &PrerequisiteCycleError{Path: cyclePath(o.stack, name)}
	}

	s, ok := o.registry.steps[name]
	if !ok {
		return &UnknownStepError{Name: name, RequiredBy: requiredBy}
	}

	if s.Mode() == InPlace && !ec.InPlace {
		ec = ec.inPlace()
	}

	o.stack = append(o.stack, name)
	defer func() { o.stack = o.stack[:len(o.stack)-1] }()

	for _, p := range s.Prerequisites() {
		if err := o.resolve(ctx, p, name, ec); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return &StepError{Step: name, Err: err}
	}

	slog.Info("running step", "run", o.runID, "step", name, "output", ec.OutputRoot())

	if err := s.Execute(ctx, ec); err != nil {
		var se *StepError
		if errors.As(err, &se) {
			return err
		}
		return &StepError{Step: name, Err: err}
	}

	o.done[name] = true
	o.ran = append(o.ran, name)
	return nil
}
