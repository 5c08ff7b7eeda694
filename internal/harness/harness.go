package harness

import (
	"context"
	"log/slog"
)

// Runs a test suite with a sidecar around it.
type Harness struct {
	Sidecar Sidecar  // Optional.
	Suite   Suite    // Suite to run.
	Env     []string // Settings applied to the suite environment, e.g. single-threaded workers.
}

// Runs the suite and returns its exit status.
//
// The sidecar is started first; if that fails the suite does not run. Once
// started, the sidecar is stopped on every return path, including panics and
// cancellation of ctx. Teardown uses a fresh context so that it still runs
// after ctx is done. A teardown failure is logged and does not change the
// status.
func (h *Harness) Run(ctx context.Context, args []string) (int, error) {
	if h.Sidecar != nil {
		if err := h.Sidecar.Start(ctx); err != nil {
			return 1, err
		}
		defer func() {
			if err := h.Sidecar.Stop(context.Background()); err != nil {
				slog.Warn("failed to stop sidecar", "error", err)
			}
		}()
	}

	slog.Debug("running test suite", "args", args, "env", h.Env)
	code, err := h.Suite.Run(ctx, args, h.Env)
	if err != nil {
		return 1, err
	}

	slog.Info("test suite finished", "status", code)
	return code, nil
}
