package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/platforms"
)

// Filename of the OCI archive produced by ExportArchive.
const exportFilename = "image.tar"

// File modes for export directories and archives.
const (
	exportDirMode  = 0755
	exportFileMode = 0644
)

// Writes a stored image to an OCI archive and returns the archive path.
//
// The image target is exported directly via [archive.WithManifest], with
// the tag attached as the OCI reference annotation so a later import
// restores the name. When the target is a multi-platform index, only the
// manifest matching the given platform is included. The output directory
// is created if it does not exist.
func (rt *Runtime) ExportArchive(ctx context.Context, tag, output, platform string) (string, error) {
	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	p, err := platforms.Parse(platform)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := os.MkdirAll(output, exportDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	path := filepath.Join(output, exportFilename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, exportFileMode)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer f.Close()

	if err := rt.client.Export(ctx, f,
		archive.WithManifest(img.Target, tag),
		archive.WithPlatform(platforms.Only(p)),
	); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Info("image exported", "path", path)
	return path, nil
}
