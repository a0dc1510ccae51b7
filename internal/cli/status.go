package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilnhq/kilnd/internal/client"
)

// Represents the 'kilnd status' command.
type StatusCmd struct{}

// Executes the status command.
//
// An unreachable daemon is reported as not running rather than as an
// error.
func (c *StatusCmd) Run(ctx context.Context) error {
	result, err := daemon().Status(ctx)
	if errors.Is(err, client.ErrUnavailable) {
		fmt.Println("kilnd is not running")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("kilnd is running")
	fmt.Printf("  version:  %s\n", result.Version)
	fmt.Printf("  pid:      %d\n", result.Pid)
	fmt.Printf("  uptime:   %s\n", result.Uptime)
	fmt.Printf("  builds:   %d\n", result.Builds)
	fmt.Printf("  launches: %d\n", result.Launches)
	return nil
}

// Represents the 'kilnd shutdown' command.
type ShutdownCmd struct{}

// Executes the shutdown command.
func (c *ShutdownCmd) Run(ctx context.Context) error {
	if err := daemon().Shutdown(ctx); err != nil {
		return err
	}

	fmt.Println("shutdown requested")
	return nil
}
