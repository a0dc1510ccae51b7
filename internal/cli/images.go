package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kilnhq/kilnd/internal/protocol"
)

// Represents the 'kilnd images' command.
type ImagesCmd struct{}

// Executes the images command.
func (c *ImagesCmd) Run(ctx context.Context) error {
	result, err := daemon().Images(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tDIGEST\tSIZE\tCREATED")
	for _, img := range result.Images {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.Tag, shortDigest(img.Digest), formatSize(img.Size), img.CreatedAt)
	}
	return w.Flush()
}

// Represents the 'kilnd import' command.
type ImportCmd struct {
	Archive string `arg:"" help:"Path to the OCI archive." type:"path"`
	Tag     string `short:"t" help:"Tag to store the image under. Defaults to the name recorded in the archive." placeholder:"NAME:TAG"`
}

// Executes the import command.
func (c *ImportCmd) Run(ctx context.Context) error {
	if err := daemon().ImportImage(ctx, &protocol.ImageImportRequest{
		Path: c.Archive,
		Tag:  c.Tag,
	}); err != nil {
		return err
	}

	slog.Info("image imported", "path", c.Archive)
	return nil
}

// Represents the 'kilnd destroy' command.
type DestroyCmd struct {
	Tag string `arg:"" help:"Image tag to remove." placeholder:"NAME:TAG"`
}

// Executes the destroy command.
func (c *DestroyCmd) Run(ctx context.Context) error {
	if err := daemon().DestroyImage(ctx, &protocol.ImageDestroyRequest{Tag: c.Tag}); err != nil {
		return err
	}

	slog.Info("image destroyed", "tag", c.Tag)
	return nil
}

// Shortens a digest string for table display.
func shortDigest(d string) string {
	d = strings.TrimPrefix(d, "sha256:")
	if len(d) > 12 {
		d = d[:12]
	}
	return d
}

// Formats a byte count using binary units.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
