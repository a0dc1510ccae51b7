package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kilnhq/kilnd/internal/plan"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Holds shared state for executing one build plan.
type bake struct {
	rt       ContainerRuntime // Container runtime for image and container operations.
	plan     *plan.Plan       // Plan being executed.
	root     string           // Directory copy sources are resolved against.
	tag      string           // Reference for the finished image.
	output   string           // Directory for an exported archive, empty when none.
	platform string           // Target platform.

	base   string          // Normalized base reference, set by selectBase.
	layers []runtime.Layer // Layers accumulated by the copy and install steps, in order.
	temps  []string        // Layer archives in scratch space, removed when the bake finishes.
}

// Creates a new [bake] from the given options.
func newBake(rt ContainerRuntime, opts Options) *bake {
	return &bake{
		rt:       rt,
		plan:     opts.Plan,
		root:     opts.Root,
		tag:      opts.Tag,
		output:   opts.Output,
		platform: opts.Platform,
	}
}

// Runs the plan's steps in order and publishes the image.
func (b *bake) run(ctx context.Context) (*Result, error) {
	defer b.cleanup()

	if err := b.selectBase(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := b.copyEntries(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := b.installDependencies(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	desc, err := b.publish(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	result := &Result{Tag: b.tag, Digest: desc.Digest}

	if b.output != "" {
		path, err := b.rt.ExportArchive(ctx, b.tag, b.output, b.platform)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
		result.Output = path
	}

	return result, nil
}

// Resolves the plan's base reference and pulls the image.
//
// Both an unresolvable reference (unknown name, unreachable registry,
// bad syntax) and a failed pull surface as the base being unavailable.
func (b *bake) selectBase(ctx context.Context) error {
	ref, dgst, err := b.rt.ResolveBase(ctx, b.plan.Base)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBaseImageUnavailable, err)
	}

	if _, err := b.rt.PullImage(ctx, ref, b.platform); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBaseImageUnavailable, ref, err)
	}

	slog.Info("base selected", "ref", ref, "digest", dgst)

	b.base = ref
	return nil
}

// Builds one layer per copy entry, in plan order.
//
// Ordering is what lets a later entry overwrite paths written by an
// earlier one, and what guarantees the install step sees every copied
// file.
func (b *bake) copyEntries() error {
	for i, entry := range b.plan.Copies {
		layer, err := buildLayer(b.root, entry)
		if err != nil {
			return fmt.Errorf("copy %d: %w", i+1, err)
		}

		b.temps = append(b.temps, layer.Path)
		b.layers = append(b.layers, layer)

		slog.Debug("layer built",
			"src", entry.Src,
			"dest", entry.Dest,
			"digest", layer.Descriptor.Digest,
			"size", layer.Descriptor.Size,
		)
	}

	return nil
}

// Runs the plan's installer inside a build container and captures the
// resulting filesystem changes as a layer.
//
// The container starts from an intermediate image holding the base plus
// every copy layer, so the installer reads the manifest the copy steps
// put in place. The intermediate image is removed when the step
// finishes. A non-zero installer exit aborts the build, carrying the
// installer's exit status and output.
func (b *bake) installDependencies(ctx context.Context) error {
	if b.plan.Install == nil {
		return nil
	}

	stage := stageTag(b.tag)
	if _, err := b.rt.AssembleImage(ctx, runtime.AssembleOptions{
		From:     b.base,
		Layers:   b.layers,
		Tag:      stage,
		Platform: b.platform,
		Unpack:   true,
	}); err != nil {
		return err
	}
	defer func() {
		if err := b.rt.DestroyImage(ctx, stage); err != nil {
			slog.Warn("failed to remove stage image", "tag", stage, "error", err)
		}
	}()

	argv := b.plan.Install.Argv()
	slog.Info("installing dependencies", "command", strings.Join(argv, " "))

	result, layer, err := b.rt.RunInstall(ctx, stage, containerID(b.tag), b.platform, argv)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: exit code %d: %s", ErrDependencyInstall, result.ExitCode, installOutput(result))
	}

	b.layers = append(b.layers, layer)
	return nil
}

// Assembles the final image: the base plus all accumulated layers, with
// the plan's startup command recorded in the config.
func (b *bake) publish(ctx context.Context) (ocispec.Descriptor, error) {
	desc, err := b.rt.AssembleImage(ctx, runtime.AssembleOptions{
		From:     b.base,
		Layers:   b.layers,
		Command:  b.plan.Command,
		Tag:      b.tag,
		Platform: b.platform,
		Unpack:   true,
	})
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	slog.Info("image published", "tag", b.tag, "digest", desc.Digest)
	return desc, nil
}

// Removes the layer archives the bake wrote to scratch space.
func (b *bake) cleanup() {
	for _, path := range b.temps {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove layer archive", "path", path, "error", err)
		}
	}
}

// Picks the diagnostic stream for a failed installer run.
func installOutput(result *runtime.ExecResult) string {
	out := strings.TrimSpace(result.Stderr)
	if out == "" {
		out = strings.TrimSpace(result.Stdout)
	}
	return out
}

// Derives a deterministic suffix for a build's intermediate names from
// the tag it will publish.
//
// The tag is hashed so the derived names stay valid containerd
// references and IDs regardless of which characters the tag contains.
// Reusing the same names lets leftovers from an interrupted build be
// replaced instead of accumulating.
func stageSuffix(tag string) string {
	h := sha256.Sum256([]byte(tag))
	return hex.EncodeToString(h[:8])
}

// Returns the reference for a build's intermediate install image.
func stageTag(tag string) string {
	return "kiln/stage/" + stageSuffix(tag) + ":latest"
}

// Returns the containerd ID for a build's install container.
func containerID(tag string) string {
	return "kiln-build-" + stageSuffix(tag)
}
