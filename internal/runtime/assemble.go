package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Content store label recording the uncompressed digest of a compressed
// layer blob, so diff IDs can be resolved without decompressing.
const uncompressedLabel = "containerd.io/uncompressed"

// A filesystem layer ready to be referenced by an image.
type Layer struct {
	Descriptor ocispec.Descriptor // Descriptor of the compressed layer blob.
	DiffID     digest.Digest      // Digest of the uncompressed layer content.
	Path       string             // Archive on disk awaiting ingestion. Empty when the blob is already stored.
}

// Describes the image AssembleImage produces.
type AssembleOptions struct {
	From     string   // Stored reference of the base image.
	Layers   []Layer  // Layers appended on top of the base, in order.
	Command  []string // Startup command for the image config. Empty keeps the base command.
	Tag      string   // Reference the result is stored under.
	Platform string   // OCI platform the base manifest is resolved for.
	Unpack   bool     // Unpack the result into the snapshotter after assembly.
}

// Builds a new image from a stored base plus additional layers and
// records it in the image store.
//
// The base manifest for the target platform is read, the layers and
// their diff IDs are appended, the startup command is applied to the
// config, and the mutated config and manifest are written back as new
// blobs. Layer archives still on disk are ingested first. The base
// image record is never modified. A content lease protects everything
// written here from garbage collection until the image record exists.
//
// The same base, layers, and command always produce the same image
// digest: nothing time- or host-dependent enters the mutated blobs.
func (rt *Runtime) AssembleImage(ctx context.Context, opts AssembleOptions) (ocispec.Descriptor, error) {
	ctx, done, err := rt.client.WithLease(ctx)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer done(context.Background())

	for _, layer := range opts.Layers {
		if layer.Path == "" {
			continue
		}
		if err := rt.ingestLayer(ctx, layer); err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}

	base, err := rt.client.ImageService().Get(ctx, opts.From)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	target, err := rt.resolveManifestDescriptor(ctx, base.Target, opts.From, opts.Platform)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	manifest, err := rt.mutateManifest(ctx, target, opts.Tag, func(manifest *ocispec.Manifest, config *ocispec.Image) {
		for _, layer := range opts.Layers {
			manifest.Layers = append(manifest.Layers, layer.Descriptor)
			config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, layer.DiffID)
		}
		if len(opts.Command) > 0 {
			config.Config.Cmd = opts.Command
			config.Config.Entrypoint = nil
		}
	})
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, opts.Tag, manifest); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if opts.Unpack {
		if err := rt.unpackImage(ctx, opts.Tag, opts.Platform); err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}

	slog.Debug("image assembled", "tag", opts.Tag, "digest", manifest.Digest, "layers", len(opts.Layers))

	return manifest, nil
}

// Writes a layer archive produced outside containerd into the content
// store under its precomputed descriptor.
//
// The uncompressed digest is attached as a label so later consumers can
// resolve the diff ID without decompressing. Writing a blob that is
// already stored succeeds without rereading the archive.
func (rt *Runtime) ingestLayer(ctx context.Context, layer Layer) error {
	fh, err := os.Open(layer.Path)
	if err != nil {
		return err
	}
	defer fh.Close()

	ref := "layer-" + layer.Descriptor.Digest.Encoded()
	return content.WriteBlob(ctx, rt.client.ContentStore(), ref, fh, layer.Descriptor,
		content.WithLabels(map[string]string{
			uncompressedLabel: layer.DiffID.String(),
		}),
	)
}

// Resolves the image root descriptor to a platform-specific manifest.
//
// If the root is an OCI Image Index, the index is read and walked to find
// the manifest matching the target platform. Roots that already are
// manifests pass through unchanged.
//
// Some registries (notably Docker Hub) serve index entries without explicit
// platform metadata. When a descriptor lacks a platform field, the manifest
// and its config are read to extract the platform from the image config, the
// same fallback that containerd's images.Manifest uses internally.
func (rt *Runtime) resolveManifestDescriptor(ctx context.Context, root ocispec.Descriptor, imageName, platform string) (ocispec.Descriptor, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil
	}

	idx, err := rt.readIndex(ctx, root)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	p, err := platforms.Parse(platform)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if i, ok := rt.matchManifest(ctx, idx, platforms.OnlyStrict(p)); ok {
		return idx.Manifests[i], nil
	}

	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %s", ErrEmptyIndex, imageName)
	}
	return idx.Manifests[0], nil
}

// Searches the index for a manifest matching the given platform.
//
// Descriptors with an explicit platform field are checked first. If none
// match, descriptors without a platform field are probed by reading the
// image config to discover the platform. Returns the index position and
// true when a match is found.
func (rt *Runtime) matchManifest(ctx context.Context, idx ocispec.Index, matcher platforms.MatchComparer) (int, bool) {
	for i, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return i, true
		}
	}
	for i, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := rt.configPlatform(ctx, m); ok && matcher.Match(p) {
			return i, true
		}
	}
	return 0, false
}

// Reads the image config referenced by a manifest descriptor and returns the
// platform declared in the config.
//
// Returns false when the config cannot be read.
func (rt *Runtime) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	manifest, err := rt.readManifest(ctx, desc)
	if err != nil {
		return ocispec.Platform{}, false
	}
	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Platform{}, false
	}
	return ocispec.Platform{
		OS:           config.OS,
		Architecture: config.Architecture,
		Variant:      config.Variant,
	}, true
}

// Reads the manifest and config, applies the mutation, and writes the
// updated blobs back to the content store.
func (rt *Runtime) mutateManifest(ctx context.Context, target ocispec.Descriptor, ref string, mutate func(*ocispec.Manifest, *ocispec.Image)) (ocispec.Descriptor, error) {
	manifest, err := rt.readManifest(ctx, target)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	mutate(&manifest, &config)

	newConfigDesc, err := rt.writeBlob(ctx, manifest.Config.MediaType, config, ref+"-config")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	manifest.Config = newConfigDesc

	return rt.writeBlob(ctx, target.MediaType, manifest, ref+"-manifest", content.WithLabels(manifestGCLabels(manifest)))
}

// Loads an OCI manifest from the content store.
func (rt *Runtime) readManifest(ctx context.Context, desc ocispec.Descriptor) (ocispec.Manifest, error) {
	b, err := content.ReadBlob(ctx, rt.client.ContentStore(), desc)
	if err != nil {
		return ocispec.Manifest{}, err
	}
	var m ocispec.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return ocispec.Manifest{}, err
	}
	return m, nil
}

// Loads an OCI image index from the content store.
func (rt *Runtime) readIndex(ctx context.Context, desc ocispec.Descriptor) (ocispec.Index, error) {
	b, err := content.ReadBlob(ctx, rt.client.ContentStore(), desc)
	if err != nil {
		return ocispec.Index{}, err
	}
	var idx ocispec.Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return ocispec.Index{}, err
	}
	return idx, nil
}

// Loads an OCI image config from the content store.
func (rt *Runtime) readConfig(ctx context.Context, desc ocispec.Descriptor) (ocispec.Image, error) {
	b, err := content.ReadBlob(ctx, rt.client.ContentStore(), desc)
	if err != nil {
		return ocispec.Image{}, err
	}
	var img ocispec.Image
	if err := json.Unmarshal(b, &img); err != nil {
		return ocispec.Image{}, err
	}
	return img, nil
}

// Serializes a value and writes it to the content store, returning the
// descriptor that references the stored blob.
func (rt *Runtime) writeBlob(ctx context.Context, mediaType string, v any, ref string, opts ...content.Opt) (ocispec.Descriptor, error) {
	cs := rt.client.ContentStore()
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}
	if err := content.WriteBlob(ctx, cs, ref, bytes.NewReader(b), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// Computes containerd GC reference labels for a manifest's children.
//
// These labels allow containerd's garbage collector to trace reachability
// from the manifest blob to its config and layer blobs.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		key := fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)
		labels[key] = layer.Digest.String()
	}
	return labels
}
