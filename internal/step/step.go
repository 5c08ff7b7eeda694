package step

import (
	"context"
	"slices"
)

// Selects where a step writes its artifacts.
type Mode int

const (

	// The step follows the invocation: staged unless --in-place was given.
	Staged Mode = iota

	// The step, and every prerequisite it triggers, writes into the source
	// tree regardless of the invocation flag.
	InPlace
)

// Returns "staged" or "in-place".
func (m Mode) String() string {
	if m == InPlace {
		return "in-place"
	}
	return "staged"
}

// A named unit of orchestrated work with declared prerequisites.
type Step interface {
	Name() string
	Prerequisites() []string
	Mode() Mode
	Execute(ctx context.Context, ec *Context) error
}

// Per-invocation state threaded through every step.
//
// The context replaces process-wide mutation: search paths for child
// processes and the in-place flag are carried explicitly and handed to the
// code that needs them.
type Context struct {
	SourceDir   string   // Working source tree.
	BuildDir    string   // Staged build output directory.
	InPlace     bool     // Write artifacts into SourceDir instead of BuildDir.
	SearchPaths []string // Directories prepended to PATH for child processes.
}

// Returns the directory steps write their artifacts under.
func (c *Context) OutputRoot() string {
	if c.InPlace {
		return c.SourceDir
	}
	return c.BuildDir
}

// Returns a copy of the context with in-place output forced on.
func (c *Context) inPlace() *Context {
	clone := *c
	clone.InPlace = true
	clone.SearchPaths = slices.Clone(c.SearchPaths)
	return &clone
}

// A [Step] assembled from plain values.
type Definition struct {
	ID       string   // Step name.
	Requires []string // Prerequisite step names, run in order.
	Output   Mode     // Output mode.

	// Step body. Nil is a no-op, which suits composite steps.
	Body func(ctx context.Context, ec *Context) error
}

// Implements [Step].
func (d *Definition) Name() string { return d.ID }

// Implements [Step].
func (d *Definition) Prerequisites() []string { return d.Requires }

// Implements [Step].
func (d *Definition) Mode() Mode { return d.Output }

// Implements [Step].
func (d *Definition) Execute(ctx context.Context, ec *Context) error {
	if d.Body == nil {
		return nil
	}
	return d.Body(ctx, ec)
}
