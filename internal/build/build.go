package build

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kilnhq/kilnd/internal/plan"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Container and image operations a bake needs.
//
// Satisfied by [runtime.Runtime]; tests substitute a fake so the
// pipeline can run without a containerd daemon.
type ContainerRuntime interface {
	ResolveBase(ctx context.Context, ref string) (string, digest.Digest, error)
	PullImage(ctx context.Context, ref, platform string) (ocispec.Descriptor, error)
	AssembleImage(ctx context.Context, opts runtime.AssembleOptions) (ocispec.Descriptor, error)
	RunInstall(ctx context.Context, image, id, platform string, argv []string) (*runtime.ExecResult, runtime.Layer, error)
	DestroyImage(ctx context.Context, tag string) error
	ExportArchive(ctx context.Context, tag, output, platform string) (string, error)
}

// Controls plan execution.
type Options struct {
	Plan     *plan.Plan // Build plan to execute.
	Root     string     // Directory copy sources are resolved against.
	Tag      string     // Reference the finished image is stored under.
	Output   string     // Directory for an exported archive. Empty skips export.
	Platform string     // Target platform (e.g., "linux/amd64"). Defaults to host.
}

// Returned after successful plan execution.
type Result struct {
	Tag    string        // Reference the image is stored under.
	Digest digest.Digest // Digest of the published image manifest.
	Output string        // Path of the exported archive. Empty when no export was requested.
}

// Executes a build plan against the container runtime.
//
// Steps run strictly in plan order: the base image is resolved and
// pulled, each copy entry becomes one layer, dependencies are installed
// on top of the copied files, and the startup command is recorded on the
// final image. Each step sees the filesystem produced by all steps
// before it. Any step's failure aborts the build and no image is
// published under the tag.
func Run(ctx context.Context, rt ContainerRuntime, opts Options) (*Result, error) {
	if opts.Plan == nil {
		return nil, fmt.Errorf("%w: no plan", ErrBuild)
	}
	if err := opts.Plan.Validate(); err != nil {
		return nil, err
	}
	if opts.Tag == "" {
		return nil, fmt.Errorf("%w: no tag", ErrBuild)
	}
	if opts.Platform == "" {
		opts.Platform = "linux/" + goruntime.GOARCH
	}

	slog.Info("executing plan",
		"tag", opts.Tag,
		"base", opts.Plan.Base,
		"copies", len(opts.Plan.Copies),
		"platform", opts.Platform,
	)

	return newBake(rt, opts).run(ctx)
}
