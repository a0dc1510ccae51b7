package cli

import (
	"context"
	"log/slog"

	"github.com/kilnhq/kilnd/internal/server"
)

// Represents the 'kilnd start' command.
type StartCmd struct {
	ContainerdAddress   string `help:"Containerd socket address." placeholder:"PATH"`
	ContainerdNamespace string `help:"Containerd namespace for images and containers." placeholder:"NAME"`
}

// Executes the start command.
//
// Starts the socket server and blocks until the context is cancelled
// (e.g. via SIGINT or SIGTERM) or the server stops itself in response
// to a shutdown command.
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		ContainerdAddress:   c.ContainerdAddress,
		ContainerdNamespace: c.ContainerdNamespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("kilnd is running")

	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Stop()
	case <-stopped:
		slog.Info("daemon stopped")
		return nil
	}
}
