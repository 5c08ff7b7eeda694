package runtime

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// State of a container as seen by containerd.
type ContainerState string

const (
	ContainerNotCreated ContainerState = "not-created"
	ContainerStopped    ContainerState = "stopped"
	ContainerRunning    ContainerState = "running"
)

// Settings for a new container.
type ContainerOptions struct {
	Args    []string // Overrides the image's entrypoint and command when set.
	Env     []string // Merged on top of the image's environment.
	LogPath string   // Host file receiving the task's stdout and stderr. Empty discards them.
}

// A container backed by containerd.
type Container struct {
	client   *containerd.Client // Containerd client for managing the container.
	id       string             // Containerd container ID.
	platform string             // OCI platform (e.g., "linux/amd64").
}

// Returns the container ID.
func (c *Container) ID() string {
	return c.id
}

// Queries the current state of the container.
func (c *Container) Status(ctx context.Context) (ContainerState, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ContainerNotCreated, nil
		}
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ContainerStopped, nil
		}
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if status.Status == containerd.Running {
		return ContainerRunning, nil
	}
	return ContainerStopped, nil
}

// Stops the container's task.
//
// The task receives SIGTERM and is killed if it has not exited after grace.
// The container metadata is preserved. Calling Stop on an already-stopped
// container is not an error.
func (c *Container) Stop(ctx context.Context, grace time.Duration) error {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := task.Kill(ctx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		slog.Debug("failed to signal container task", "id", c.id, "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-statusC:
	case <-timer.C:
		slog.Warn("container did not exit in time, killing", "id", c.id, "grace", grace)
		task.Kill(ctx, syscall.SIGKILL)
		<-statusC
	case <-ctx.Done():
		task.Kill(context.Background(), syscall.SIGKILL)
	}

	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return nil
}

// Removes the container and its resources.
//
// The task is killed and the container is removed from containerd along
// with its snapshot. After destruction the handle is invalid.
func (c *Container) Destroy(ctx context.Context) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete container during destruction", "id", c.id, "error", err)
	}
}

// Sequence counter for exec process identifiers.
var execSeq uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("exec-%d", atomic.AddUint64(&execSeq, 1))
}

// Runs a command directly inside the running container.
//
// The process inherits the container's environment and working directory.
// A non-zero exit code is not treated as an error; the caller decides.
func (c *Container) ExecArgs(ctx context.Context, args []string) (*ExecResult, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	var stdout, stderr bytes.Buffer
	process, err := task.Exec(ctx, nextExecID(), &pspec, cio.NewCreator(
		cio.WithStreams(nil, &stdout, &stderr),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	code, err := awaitProcess(ctx, process)
	if err != nil {
		return nil, err
	}

	return &ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Starts an exec process, waits for it to exit, and returns the exit code.
// The process is always deleted before returning.
func awaitProcess(ctx context.Context, process containerd.Process) (int, error) {
	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	exitStatus := <-statusC
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return int(code), nil
}

// Creates the containerd container for a sidecar.
func (c *Container) create(ctx context.Context, image containerd.Image, snapshotter string, opts ContainerOptions) (containerd.Container, error) {
	specOpts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
	}
	if len(opts.Env) > 0 {
		specOpts = append(specOpts, oci.WithEnv(opts.Env))
	}
	if len(opts.Args) > 0 {
		specOpts = append(specOpts, oci.WithProcessArgs(opts.Args...))
	}

	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(specOpts...),
	)
}

// Starts the container's task, sending its output to logPath when set.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container, logPath string) error {
	var creator cio.Creator = cio.NullIO
	if logPath != "" {
		creator = cio.LogFile(logPath)
	}

	task, err := ctr.NewTask(ctx, creator)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Removes an existing container with this ID, if one exists.
func (c *Container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}
