package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilnhq/kilnd/internal/protocol"
)

// Starts a daemon stand-in on a temporary socket. Each accepted connection
// carries one exchange answered by respond.
func serve(t *testing.T, respond func(cmd protocol.Command, payload json.RawMessage) (protocol.Command, any)) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "kilnd.sock")
	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()

				line, err := bufio.NewReader(conn).ReadBytes(byte(10))
				if err != nil {
					return
				}
				env, payload, err := protocol.Decode(line)
				if err != nil {
					return
				}

				cmd, result := respond(env.Command, payload)
				data, err := protocol.Encode(cmd, result)
				if err != nil {
					return
				}
				conn.Write(append(data, byte(10)))
			}(conn)
		}
	}()

	return socket
}

func TestStatus(t *testing.T) {
	socket := serve(t, func(cmd protocol.Command, _ json.RawMessage) (protocol.Command, any) {
		if cmd != protocol.CmdStatus {
			t.Errorf("command = %q, want %q", cmd, protocol.CmdStatus)
		}
		return protocol.CmdOK, &protocol.StatusResult{Running: true, Pid: 42, Builds: 3}
	})

	result, err := New(socket).Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Running {
		t.Error("running = false, want true")
	}
	if result.Pid != 42 {
		t.Errorf("pid = %d, want 42", result.Pid)
	}
	if result.Builds != 3 {
		t.Errorf("builds = %d, want 3", result.Builds)
	}
}

func TestBuildCarriesPayload(t *testing.T) {
	socket := serve(t, func(_ protocol.Command, payload json.RawMessage) (protocol.Command, any) {
		req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
		if err != nil {
			t.Errorf("decode request: %v", err)
			return protocol.CmdError, &protocol.ErrorResult{Message: err.Error()}
		}
		return protocol.CmdOK, &protocol.BuildResult{Tag: req.Tag, Digest: "sha256:abc"}
	})

	result, err := New(socket).Build(context.Background(), &protocol.BuildRequest{Tag: "app:latest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tag != "app:latest" {
		t.Errorf("tag = %q, want app:latest", result.Tag)
	}
	if result.Digest != "sha256:abc" {
		t.Errorf("digest = %q, want sha256:abc", result.Digest)
	}
}

func TestDaemonError(t *testing.T) {
	socket := serve(t, func(_ protocol.Command, _ json.RawMessage) (protocol.Command, any) {
		return protocol.CmdError, &protocol.ErrorResult{Message: "base image unavailable: python:99"}
	})

	_, err := New(socket).Build(context.Background(), &protocol.BuildRequest{Tag: "app:latest"})
	if !errors.Is(err, ErrDaemon) {
		t.Fatalf("error = %v, want %v", err, ErrDaemon)
	}
	if !strings.Contains(err.Error(), "python:99") {
		t.Errorf("error %q missing the daemon message", err)
	}
}

func TestUnavailable(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.Status(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want %v", err, ErrUnavailable)
	}
}

func TestShutdown(t *testing.T) {
	socket := serve(t, func(cmd protocol.Command, _ json.RawMessage) (protocol.Command, any) {
		if cmd != protocol.CmdShutdown {
			t.Errorf("command = %q, want %q", cmd, protocol.CmdShutdown)
		}
		return protocol.CmdOK, nil
	})

	if err := New(socket).Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
