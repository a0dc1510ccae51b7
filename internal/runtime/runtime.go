package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kilnhq/kilnd/internal/registry"
)

const (

	// Snapshotter used for container filesystems. fuse-overlayfs provides
	// overlay semantics without requiring root privileges (no mount(2)),
	// allowing kilnd to run as a regular user.
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client *containerd.Client // Containerd client for managing containers and images.
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
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Resolves an image reference against its registry.
//
// Returns the fully qualified reference and the digest the registry
// currently serves for it.
func (rt *Runtime) ResolveBase(ctx context.Context, ref string) (string, digest.Digest, error) {
	return registry.Resolve(ctx, ref)
}

// Pulls an image from its registry and unpacks the layers for the target
// platform into the snapshotter.
//
// Returns the descriptor the pulled reference points at. Pulling an
// already-present image refreshes the record and skips stored blobs.
func (rt *Runtime) PullImage(ctx context.Context, ref, platform string) (ocispec.Descriptor, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	image, err := rt.client.Pull(ctx, ref,
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(snapshotter),
	)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image pulled", "ref", ref, "digest", image.Target().Digest)
	return image.Target(), nil
}

// Imports an OCI archive into the image store and unpacks it for the
// host platform.
//
// The archive must contain exactly one image. When tag is empty the
// reference recorded in the archive is kept; otherwise the image is
// retagged and the archive's own record is removed.
func (rt *Runtime) ImportArchive(ctx context.Context, path, tag string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if tag == "" {
		tag = source.Name
	} else if err := rt.retagImage(ctx, source, tag); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.unpackImage(ctx, tag, defaultPlatform()); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image imported", "tag", tag)
	return nil
}

// Imports an OCI archive into the content store.
//
// The archive must contain exactly one image. Multi-platform archives
// are supported (single OCI index with per-platform manifests).
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

	// Import returns one record per image in the archive's index.json.
	// A multi-platform archive has a single entry (an OCI index that
	// internally references per-platform manifests); platform selection
	// happens later when the image is resolved. Multiple records would
	// mean multiple unrelated images, which we don't support.
	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Records an image under the given name, updating the record when the
// name already exists.
func (rt *Runtime) tagImage(ctx context.Context, tag string, target ocispec.Descriptor) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	return nil
}

// Tags an imported image under a new name.
//
// Removes the source record when its name differs from the tag to avoid
// duplicates.
func (rt *Runtime) retagImage(ctx context.Context, source images.Image, tag string) error {
	if err := rt.tagImage(ctx, tag, source.Target); err != nil {
		return err
	}

	if source.Name != tag {
		_ = rt.client.ImageService().Delete(ctx, source.Name)
	}

	return nil
}

// Unpacks the image layers for the target platform into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, tag, platform string) error {
	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return err
	}

	return image.Unpack(ctx, snapshotter)
}

// Looks up a tagged image and selects the manifest for the given platform.
//
// Multi-platform images contain manifests for multiple architectures. This
// method selects one, so that subsequent operations target the correct
// architecture.
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

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}

// Removes an image and all containers created from it.
//
// Containers are discovered by querying containerd for records whose image
// field matches the tag. Each container's task is killed before the container
// and its snapshot are deleted. Destroying an absent image is not an error.
func (rt *Runtime) DestroyImage(ctx context.Context, tag string) error {
	ctrs, err := rt.client.Containers(ctx, fmt.Sprintf("image==%s", tag))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	for _, ctr := range ctrs {
		if task, taskErr := ctr.Task(ctx, nil); taskErr == nil {
			task.Kill(ctx, syscall.SIGKILL)
			task.Delete(ctx, containerd.WithProcessKill)
		}
		if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}

	if err := rt.client.ImageService().Delete(ctx, tag); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image destroyed", "tag", tag)
	return nil
}

// Describes one stored image.
type ImageSummary struct {
	Tag       string        // Reference the image is stored under.
	Digest    digest.Digest // Digest of the image target descriptor.
	Size      int64         // Compressed content size for the host platform.
	CreatedAt time.Time     // Timestamp of the image record.
}

// Lists the images stored in the daemon's namespace.
func (rt *Runtime) ListImages(ctx context.Context) ([]ImageSummary, error) {
	imgs, err := rt.client.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	summaries := make([]ImageSummary, 0, len(imgs))
	for _, img := range imgs {
		size, err := img.Size(ctx)
		if err != nil {
			slog.Warn("failed to compute image size", "tag", img.Name(), "error", err)
			size = 0
		}
		summaries = append(summaries, ImageSummary{
			Tag:       img.Name(),
			Digest:    img.Target().Digest,
			Size:      size,
			CreatedAt: img.Metadata().CreatedAt,
		})
	}

	return summaries, nil
}
