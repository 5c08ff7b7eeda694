package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/cellprofiler/cpbuild/internal/runtime"
)

const (

	// Time a sidecar gets to exit after the termination request.
	DefaultGrace = 10 * time.Second

	// Time a container sidecar gets to pass its readiness probe.
	DefaultReadyTimeout = time.Minute

	// Interval between readiness probes.
	readyInterval = 500 * time.Millisecond
)

// A service that runs for the duration of a test pass.
//
// Stop must be safe to call after a failed or skipped Start.
type Sidecar interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Creates the sidecar described by cfg, or nil when none is configured.
func NewSidecar(cfg project.Sidecar, searchPaths []string) Sidecar {
	switch {
	case cfg.IsProcess():
		return &ProcessSidecar{
			Name:        cfg.Name,
			Command:     cfg.Command,
			Env:         cfg.Env,
			SearchPaths: searchPaths,
			Grace:       cfg.Grace,
		}
	case cfg.IsContainer():
		return &ContainerSidecar{
			Name:      cfg.Name,
			Image:     cfg.Image,
			Archive:   cfg.Archive,
			Env:       cfg.Env,
			Ready:     cfg.Ready,
			Address:   cfg.Address,
			Namespace: cfg.Namespace,
			Grace:     cfg.Grace,
		}
	}
	return nil
}

// A sidecar running as a host process, such as a JVM.
type ProcessSidecar struct {
	Name        string        // Used for the log file name.
	Command     []string      // Program and arguments.
	Env         []string      // Environment overrides.
	SearchPaths []string      // Prepended to PATH of the process.
	Grace       time.Duration // Defaults to [DefaultGrace].
	LogPath     string        // Defaults to [paths.SidecarLog].

	proc *runtime.Process
	log  *os.File
}

// Implements [Sidecar].
func (s *ProcessSidecar) Start(ctx context.Context) error {
	logPath := s.logPath()
	if err := os.MkdirAll(filepath.Dir(logPath), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}

	proc, err := runtime.Host{}.Start(ctx, runtime.Command{
		Args:        s.Command,
		Env:         s.Env,
		SearchPaths: s.SearchPaths,
		Stdout:      f,
		Stderr:      f,
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}

	s.proc, s.log = proc, f
	slog.Info("sidecar started", "name", s.Name, "pid", proc.Pid(), "log", logPath)
	return nil
}

// Implements [Sidecar].
func (s *ProcessSidecar) Stop(ctx context.Context) error {
	if s.proc == nil {
		return nil
	}
	defer func() {
		s.log.Close()
		s.proc, s.log = nil, nil
	}()

	if err := s.proc.Stop(ctx, graceOrDefault(s.Grace)); err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	slog.Info("sidecar stopped", "name", s.Name)
	return nil
}

func (s *ProcessSidecar) logPath() string {
	if s.LogPath != "" {
		return s.LogPath
	}
	return paths.SidecarLog(s.Name)
}

// A sidecar running as a containerd container.
type ContainerSidecar struct {
	Name         string        // Container ID suffix and log file name.
	Image        string        // Image reference, or the tag for an imported archive.
	Archive      string        // OCI archive imported instead of pulling Image.
	Env          []string      // Merged on top of the image's environment.
	Ready        []string      // Probe run inside the container until it exits zero.
	ReadyTimeout time.Duration // Defaults to [DefaultReadyTimeout].
	Address      string        // containerd socket.
	Namespace    string        // containerd namespace.
	Grace        time.Duration // Defaults to [DefaultGrace].

	rt  *runtime.Runtime
	ctr *runtime.Container
}

// Implements [Sidecar].
//
// The image is imported from Archive when set and pulled otherwise. A
// failure after the container started destroys it before returning.
func (s *ContainerSidecar) Start(ctx context.Context) (err error) {
	rt, err := runtime.New(s.Address, s.Namespace)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	tag := s.Image
	if s.Archive != "" {
		if tag, err = rt.ImportImage(ctx, s.Archive, s.Image); err != nil {
			return fmt.Errorf("%w: %w", ErrSidecar, err)
		}
	} else if err = rt.EnsureImage(ctx, s.Image); err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}

	logPath := paths.SidecarLog(s.Name)
	if err = os.MkdirAll(filepath.Dir(logPath), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}

	ctr, err := rt.StartFromTag(ctx, tag, s.containerID(), runtime.ContainerOptions{
		Env:     s.Env,
		LogPath: logPath,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}

	if err = s.awaitReady(ctx, ctr); err != nil {
		ctr.Destroy(context.Background())
		return err
	}

	s.rt, s.ctr = rt, ctr
	slog.Info("sidecar started", "name", s.Name, "container", ctr.ID(), "image", tag, "log", logPath)
	return nil
}

// Implements [Sidecar].
func (s *ContainerSidecar) Stop(ctx context.Context) error {
	if s.ctr == nil {
		return nil
	}
	defer func() {
		s.ctr.Destroy(ctx)
		s.rt.Close()
		s.rt, s.ctr = nil, nil
	}()

	if err := s.ctr.Stop(ctx, graceOrDefault(s.Grace)); err != nil {
		return fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	slog.Info("sidecar stopped", "name", s.Name)
	return nil
}

// Runs the readiness probe until it passes or the timeout expires.
func (s *ContainerSidecar) awaitReady(ctx context.Context, ctr *runtime.Container) error {
	if len(s.Ready) == 0 {
		return nil
	}

	timeout := s.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()

	for {
		res, err := ctr.ExecArgs(ctx, s.Ready)
		if err == nil && res.ExitCode == 0 {
			return nil
		}
		slog.Debug("sidecar not ready yet", "name", s.Name, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", ErrSidecarNotReady, s.Name, timeout)
		case <-ticker.C:
		}
	}
}

func (s *ContainerSidecar) containerID() string {
	return "cpbuild-sidecar-" + s.Name
}

func graceOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultGrace
	}
	return d
}
