package runtime

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Describes a container launch.
type LaunchOptions struct {
	Image   string   // Stored reference of the image to launch.
	Command []string // Override for the startup command recorded in the image. Empty uses the recorded one.
	Keep    bool     // Preserve the instance and its snapshot after exit.
}

// Reports a finished launch.
type LaunchResult struct {
	InstanceID string // Identifier of the container instance.
	ExitCode   int    // Exit status of the entry process.
	Stdout     string // Captured standard output.
	Stderr     string // Captured standard error.
}

// Creates a fresh container instance from a stored image, runs its entry
// process to completion, and reports the exit status.
//
// Every launch gets its own snapshot on top of the image's immutable
// layers, so concurrent instances of the same image write to independent
// filesystems. The entry process runs the startup command recorded in
// the image config unless opts.Command overrides it. Cancelling ctx
// kills the process. The exit status of the entry process is reported
// verbatim; a process that exits is never restarted. The instance and
// its snapshot are removed after exit unless opts.Keep is set.
func (rt *Runtime) Launch(ctx context.Context, opts LaunchOptions) (*LaunchResult, error) {
	platform := defaultPlatform()

	image, err := rt.resolveImage(ctx, opts.Image, platform)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, opts.Image)
		}
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	id := instanceID()

	specOpts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
	}
	if len(opts.Command) > 0 {
		specOpts = append(specOpts, oci.WithProcessArgs(opts.Command...))
	}

	ctr, err := rt.client.NewContainer(ctx, id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(specOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	var stdout, stderr bytes.Buffer

	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrEntryProcessFailed, err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrEntryProcessFailed, err)
	}

	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrEntryProcessFailed, err)
	}

	slog.Info("instance started", "id", id, "image", opts.Image)

	// Cleanup below runs on a fresh context: ctx may already be
	// cancelled when the client disconnected to stop the instance.
	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		slog.Debug("launch cancelled, killing instance", "id", id)
		task.Kill(context.Background(), syscall.SIGKILL)
		status = <-statusC
	}

	task.Delete(context.Background())

	code, _, err := status.Result()
	if err != nil {
		ctr.Delete(context.Background(), containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if opts.Keep {
		slog.Debug("instance preserved", "id", id, "exit_code", code)
	} else {
		if err := ctr.Delete(context.Background(), containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
			slog.Warn("failed to remove instance", "id", id, "error", err)
		}
	}

	slog.Info("instance exited", "id", id, "exit_code", code)

	return &LaunchResult{
		InstanceID: id,
		ExitCode:   int(code),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}, nil
}

// Returns a unique identifier for a launched instance.
func instanceID() string {
	return "kiln-" + uuid.NewString()
}
