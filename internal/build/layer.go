package build

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/plan"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// File mode for directory headers synthesized for destination parents.
const syntheticDirMode = 0755

// Builds one gzip-compressed tar layer from a single copy entry.
//
// The archive is written to scratch space and described by the returned
// layer, including the digest of the compressed blob and the diff ID of
// the uncompressed content. Entries are written in lexical walk order
// and header fields that vary between hosts and users (owner, group,
// access and change times) are normalized, so identical source trees
// always produce an identical blob.
//
// A directory source places its contents under the destination path. A
// file source is written to the destination path itself, or under it
// when the destination ends in a separator.
func buildLayer(root string, entry plan.CopyEntry) (runtime.Layer, error) {
	src := entry.Src
	if !filepath.IsAbs(src) {
		src = filepath.Join(root, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return runtime.Layer{}, fmt.Errorf("%w: %s", ErrSourcePathMissing, entry.Src)
		}
		return runtime.Layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	scratch := paths.Scratch()
	if err := os.MkdirAll(scratch, paths.DefaultDirMode); err != nil {
		return runtime.Layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	f, err := os.CreateTemp(scratch, "layer-*.tar.gz")
	if err != nil {
		return runtime.Layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	layer, err := writeLayer(f, src, entry.Dest, info.IsDir())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return runtime.Layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	layer.Path = f.Name()
	return layer, nil
}

// Writes the gzip tar stream for a copy entry and computes its digests.
//
// Two digests are taken in one pass: one over the compressed bytes (the
// blob descriptor) and one over the uncompressed tar bytes (the diff ID
// recorded in the image config).
func writeLayer(f *os.File, src, dest string, isDir bool) (runtime.Layer, error) {
	compressed := digest.SHA256.Digester()
	uncompressed := digest.SHA256.Digester()

	counter := &countingWriter{w: io.MultiWriter(f, compressed.Hash())}
	gzw := gzip.NewWriter(counter)
	tw := tar.NewWriter(io.MultiWriter(gzw, uncompressed.Hash()))

	var err error
	if isDir {
		err = writeDirEntries(tw, src, dest)
	} else {
		target := destFilePath(dest, src)
		if err = writeParentDirs(tw, path.Dir(target)); err == nil {
			err = writeFileEntry(tw, src, tarName(target))
		}
	}
	if err != nil {
		return runtime.Layer{}, err
	}

	if err := tw.Close(); err != nil {
		return runtime.Layer{}, err
	}
	if err := gzw.Close(); err != nil {
		return runtime.Layer{}, err
	}

	return runtime.Layer{
		Descriptor: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    compressed.Digest(),
			Size:      counter.n,
		},
		DiffID: uncompressed.Digest(),
	}, nil
}

// Writes a directory tree's contents under the destination path,
// preceded by headers for the destination directory and its parents.
func writeDirEntries(tw *tar.Writer, srcDir, dest string) error {
	if err := writeParentDirs(tw, dest); err != nil {
		return err
	}

	return filepath.WalkDir(srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		// The destination directory itself is covered by writeParentDirs.
		if rel == "." {
			return nil
		}

		name := tarName(path.Join(dest, filepath.ToSlash(rel)))
		return writeEntry(tw, p, name, d)
	})
}

// Writes a single filesystem entry to the tar stream with normalized
// metadata.
func writeEntry(tw *tar.Writer, hostPath, name string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(hostPath); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}
	normalizeHeader(header)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}

// Writes a single file to the tar stream with normalized metadata.
func writeFileEntry(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	normalizeHeader(header)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes directory headers for every component of an absolute
// destination path. Writing the root destination is a no-op.
func writeParentDirs(tw *tar.Writer, dest string) error {
	clean := tarName(dest)
	if clean == "" {
		return nil
	}

	var prefix string
	for _, part := range strings.Split(clean, "/") {
		prefix = path.Join(prefix, part)
		header := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     prefix + "/",
			Mode:     syntheticDirMode,
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
	}

	return nil
}

// Strips host- and user-specific metadata from a tar header.
//
// Ownership is rooted, owner names cleared, and timestamps reduced to a
// second-resolution modification time, which keeps rebuilds of an
// unchanged tree byte-identical.
func normalizeHeader(h *tar.Header) {
	h.Uid = 0
	h.Gid = 0
	h.Uname = ""
	h.Gname = ""
	h.ModTime = h.ModTime.Truncate(time.Second)
	h.AccessTime = time.Time{}
	h.ChangeTime = time.Time{}
}

// Resolves the archive path for a single-file copy.
//
// A destination ending in a separator names a directory to copy into;
// anything else names the file itself.
func destFilePath(dest, src string) string {
	if strings.HasSuffix(dest, "/") {
		return path.Join(dest, filepath.Base(src))
	}
	return dest
}

// Converts an absolute destination path to a tar archive name.
func tarName(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Counts bytes on their way to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
