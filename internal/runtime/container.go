package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/leases"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// A running build container backed by containerd.
type Container struct {
	client   *containerd.Client // Containerd client for managing the container.
	id       string             // Unique identifier for the container, used as the containerd container ID.
	platform string             // OCI platform (e.g., "linux/amd64").
}

// Starts a build container from the image, runs the installer command
// inside it, and commits the resulting filesystem changes as a layer.
//
// A non-zero installer exit is not an error: the result carries the exit
// code and captured output, and no layer is committed. The build
// container is always destroyed before returning.
func (rt *Runtime) RunInstall(ctx context.Context, image, id, platform string, argv []string) (*ExecResult, Layer, error) {
	ctr, err := rt.startBuildContainer(ctx, image, id, platform)
	if err != nil {
		return nil, Layer{}, err
	}
	defer ctr.Destroy(ctx)

	result, err := ctr.ExecArgs(ctx, argv)
	if err != nil {
		return nil, Layer{}, err
	}
	if result.ExitCode != 0 {
		return result, Layer{}, nil
	}

	layer, err := ctr.Commit(ctx)
	if err != nil {
		return nil, Layer{}, err
	}

	return result, layer, nil
}

// Creates a build container from a stored image and starts its
// long-running task.
//
// The task runs "sleep infinity" so installer processes can be attached
// as execs. Any stale container with the same ID from an interrupted
// build is removed first.
func (rt *Runtime) startBuildContainer(ctx context.Context, image, id, platform string) (*Container, error) {
	c := &Container{
		client:   rt.client,
		id:       id,
		platform: platform,
	}

	c.remove(ctx)

	resolved, err := rt.resolveImage(ctx, image, platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	ctr, err := c.create(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("build container started", "id", id, "image", image)

	return c, nil
}

// Creates the containerd container with the standard build configuration.
func (c *Container) create(ctx context.Context, image containerd.Image) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(c.platform),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
}

// Starts the container's long-running task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Computes the diff between the container's snapshot and its parent and
// stores it as a new layer blob.
//
// The blob is written under an expiring content lease rather than a
// released one: it must outlive this call and the container it came
// from, up to the point where an image record references it. A build
// that abandons the layer leaves it to expire and fall to garbage
// collection.
func (c *Container) Commit(ctx context.Context) (Layer, error) {
	loaded, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return Layer{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	info, err := loaded.Info(ctx)
	if err != nil {
		return Layer{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	leaseCtx, _, err := c.client.WithLease(ctx,
		leases.WithRandomID(),
		leases.WithExpiration(time.Hour),
	)
	if err != nil {
		return Layer{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	desc, err := rootfs.CreateDiff(leaseCtx,
		info.SnapshotKey,
		c.client.SnapshotService(info.Snapshotter),
		c.client.DiffService(),
	)
	if err != nil {
		return Layer{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	diffID, err := images.GetDiffID(leaseCtx, c.client.ContentStore(), desc)
	if err != nil {
		return Layer{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("layer committed", "id", c.id, "digest", desc.Digest, "size", desc.Size)

	return Layer{Descriptor: desc, DiffID: diffID}, nil
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

// Removes an existing container with this ID, if one exists.
//
// Any running task is killed and the container is deleted along with its
// snapshot. This is a no-op when no container with the ID is found.
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
