package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
)

// Snapshotter used for container filesystems when none is configured.
const defaultSnapshotter = "overlayfs"

// OCI runtime shim for running containers.
const ociRuntime = "io.containerd.runc.v2"

// Characters not allowed in a reference path component.
var unsafeRef = regexp.MustCompile(`[^a-z0-9._-]+`)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter for container filesystems.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return &Runtime{client: client, snapshotter: defaultSnapshotter}, nil
}

// Selects the snapshotter used for new containers. Empty keeps the default.
func (rt *Runtime) SetSnapshotter(name string) {
	if name != "" {
		rt.snapshotter = name
	}
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Imports an OCI archive, tags it under the given name, and unpacks it for
// the host platform.
//
// An empty tag is replaced by one derived from the archive path. Returns the
// tag the image was stored under.
func (rt *Runtime) ImportImage(ctx context.Context, path, tag string) (string, error) {
	if tag == "" {
		tag = imageTag(path)
	}

	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	image, err := rt.resolveImage(ctx, tag, defaultPlatform())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	if err := image.Unpack(ctx, rt.snapshotter); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image imported", "tag", tag)
	return tag, nil
}

// Pulls an image by reference and unpacks it for the host platform.
//
// Images already present in the content store are not pulled again.
func (rt *Runtime) EnsureImage(ctx context.Context, ref string) error {
	if _, err := rt.client.ImageService().Get(ctx, ref); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Info("pulling image", "ref", ref)
	_, err := rt.client.Pull(ctx, ref,
		containerd.WithPlatform(defaultPlatform()),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(rt.snapshotter),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return nil
}

// Starts a container from a previously imported or pulled image tag.
//
// Any stale container with the same ID is cleaned up first. The container
// runs the image's entrypoint, or opts.Args when set, detached.
func (rt *Runtime) StartFromTag(ctx context.Context, tag, id string, opts ContainerOptions) (*Container, error) {
	c := rt.Container(id)
	c.remove(ctx)

	image, err := rt.resolveImage(ctx, tag, c.platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	ctr, err := c.create(ctx, image, rt.snapshotter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr, opts.LogPath); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", tag)
	return c, nil
}

// Returns a handle for an existing container.
//
// The container is not loaded or verified; the handle is a lightweight
// reference that resolves the container lazily on subsequent calls.
func (rt *Runtime) Container(id string) *Container {
	return &Container{
		client:   rt.client,
		id:       id,
		platform: defaultPlatform(),
	}
}

// Imports an OCI archive into the content store.
//
// The archive must contain exactly one image. Multi-platform archives are
// supported (single OCI index with per-platform manifests).
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Tags an imported image under a deterministic name.
//
// Updates the tag if it already exists. Removes the source record when its
// name differs from the tag to avoid duplicates.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Looks up a tagged image and selects the manifest for the given platform.
func (rt *Runtime) resolveImage(ctx context.Context, tag, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Produces a containerd image tag from an archive path.
//
// The repository is the archive's base name reduced to reference-safe
// characters; the tag is a short hash of the full path, so archives with
// the same name in different directories do not collide.
func imageTag(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".tar.gz", ".tgz", ".tar", ".oci"} {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.Trim(unsafeRef.ReplaceAllString(name, "-"), "-._")
	if name == "" {
		name = "archive"
	}

	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:%s", name, hex.EncodeToString(h[:6]))
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
