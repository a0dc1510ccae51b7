package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kilnhq/kilnd/internal/plan"
	"github.com/kilnhq/kilnd/internal/protocol"
)

// Represents the 'kilnd build' command.
type BuildCmd struct {
	Plan     string `arg:"" optional:"" default:"kiln.yaml" help:"Path to the build plan." type:"path"`
	Tag      string `short:"t" required:"" help:"Tag for the built image." placeholder:"NAME:TAG"`
	Root     string `short:"C" help:"Build context root. Defaults to the plan's directory." type:"path"`
	Output   string `short:"o" help:"Directory to export an OCI archive of the image to." type:"path"`
	Platform string `help:"Target platform. Defaults to the daemon's host platform." placeholder:"OS/ARCH"`
}

// Executes the build command.
//
// Loads and validates the plan locally, then sends it to the daemon for
// baking. Plan errors are reported before the daemon is contacted.
func (c *BuildCmd) Run(ctx context.Context) error {
	p, err := plan.Load(c.Plan)
	if err != nil {
		return err
	}

	root := c.Root
	if root == "" {
		root = filepath.Dir(c.Plan)
	}

	result, err := daemon().Build(ctx, &protocol.BuildRequest{
		Plan:     *p,
		Root:     root,
		Tag:      c.Tag,
		Output:   c.Output,
		Platform: c.Platform,
	})
	if err != nil {
		return err
	}

	slog.Info("image built", "tag", result.Tag, "digest", result.Digest)
	if result.Output != "" {
		slog.Info("image exported", "path", result.Output)
	}

	fmt.Println(result.Digest)
	return nil
}
