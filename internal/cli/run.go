package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kilnhq/kilnd/internal/protocol"
)

// Represents the 'kilnd run' command.
type RunCmd struct {
	Image   string   `arg:"" help:"Image tag to run." placeholder:"NAME:TAG"`
	Command []string `arg:"" optional:"" passthrough:"" help:"Override the image startup command."`
	Keep    bool     `help:"Keep the container after its entry process exits."`
}

// Executes the run command.
//
// Launches a container and waits for its entry process to exit. Captured
// output is replayed to the terminal and the entry process exit code
// becomes kilnd's own exit code.
func (c *RunCmd) Run(ctx context.Context) error {
	result, err := daemon().Run(ctx, &protocol.RunRequest{
		Image:   c.Image,
		Command: c.Command,
		Keep:    c.Keep,
	})
	if err != nil {
		return err
	}

	if result.Stdout != "" {
		fmt.Fprint(os.Stdout, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}

	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}

	return nil
}
