package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/protocol"
)

// Talks to the kilnd daemon over its Unix socket.
//
// Each request opens a fresh connection, performs one exchange, and
// closes it, mirroring the daemon's one-exchange-per-connection model.
type Client struct {
	socketPath string // Path to the daemon socket file.
}

// Creates a client for the daemon socket at the given path. An empty path
// uses the default socket location.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = paths.Socket()
	}
	return &Client{socketPath: socketPath}
}

// Builds an image from a plan.
func (c *Client) Build(ctx context.Context, req *protocol.BuildRequest) (*protocol.BuildResult, error) {
	return do[protocol.BuildResult](ctx, c, protocol.CmdBuild, req)
}

// Runs a container from an image and waits for its entry process to exit.
func (c *Client) Run(ctx context.Context, req *protocol.RunRequest) (*protocol.RunResult, error) {
	return do[protocol.RunResult](ctx, c, protocol.CmdRun, req)
}

// Lists the images stored by the daemon.
func (c *Client) Images(ctx context.Context) (*protocol.ImagesResult, error) {
	return do[protocol.ImagesResult](ctx, c, protocol.CmdImages, nil)
}

// Imports an OCI archive into the daemon's image store.
func (c *Client) ImportImage(ctx context.Context, req *protocol.ImageImportRequest) error {
	_, err := c.do(ctx, protocol.CmdImageImport, req)
	return err
}

// Removes an image and any containers created from it.
func (c *Client) DestroyImage(ctx context.Context, req *protocol.ImageDestroyRequest) error {
	_, err := c.do(ctx, protocol.CmdImageDestroy, req)
	return err
}

// Queries the daemon status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	return do[protocol.StatusResult](ctx, c, protocol.CmdStatus, nil)
}

// Asks the daemon to shut down.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.do(ctx, protocol.CmdShutdown, nil)
	return err
}

// Performs one exchange and decodes the OK payload into T.
func do[T any](ctx context.Context, c *Client, cmd protocol.Command, payload any) (*T, error) {
	raw, err := c.do(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[T](raw)
}

// Dials the daemon, sends one envelope, and reads one response line.
//
// A CmdError response is converted into an error carrying the daemon's
// message. Cancelling the context closes the connection, which both
// aborts the local read and signals the daemon to cancel the operation.
func (c *Client) do(ctx context.Context, cmd protocol.Command, payload any) (json.RawMessage, error) {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}
	data = append(data, byte(10))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes(byte(10))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	env, respPayload, err := protocol.Decode(line)
	if err != nil {
		return nil, err
	}

	if env.Command == protocol.CmdError {
		result, err := protocol.DecodePayload[protocol.ErrorResult](respPayload)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrDaemon, result.Message)
	}

	return respPayload, nil
}
