package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/kilnhq/kilnd/internal"
	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/protocol"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Handles a build command.
//
// Receives a plan from the CLI and executes it against the container runtime.
// The plan is validated again on this side; the daemon does not trust the
// client to have done so.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := req.Plan.Validate(); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result, err := build.Run(ctx, s.runtime, build.Options{
		Plan:     &req.Plan,
		Root:     req.Root,
		Tag:      req.Tag,
		Output:   req.Output,
		Platform: req.Platform,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{
		Tag:    result.Tag,
		Digest: result.Digest.String(),
		Output: result.Output,
	})
}

// Handles a run command.
//
// Launches a container from a built image and blocks until its entry process
// exits. The context is cancelled when the client disconnects, which kills
// the container rather than leaving it orphaned.
func (s *Server) handleRun(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RunRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result, err := s.runtime.Launch(ctx, runtime.LaunchOptions{
		Image:   req.Image,
		Command: req.Command,
		Keep:    req.Keep,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.launches++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.RunResult{
		InstanceID: result.InstanceID,
		ExitCode:   result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
	})
}

// Handles an images command.
func (s *Server) handleImages(ctx context.Context, conn net.Conn) {
	summaries, err := s.runtime.ListImages(ctx)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	images := make([]protocol.ImageInfo, 0, len(summaries))
	for _, img := range summaries {
		images = append(images, protocol.ImageInfo{
			Tag:       img.Tag,
			Digest:    img.Digest.String(),
			Size:      img.Size,
			CreatedAt: img.CreatedAt.Format(time.RFC3339),
		})
	}

	s.respond(conn, protocol.CmdOK, &protocol.ImagesResult{Images: images})
}

// Handles an image-import command.
func (s *Server) handleImageImport(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ImageImportRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := s.runtime.ImportArchive(ctx, req.Path, req.Tag); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, nil)
}

// Handles an image-destroy command.
func (s *Server) handleImageDestroy(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ImageDestroyRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := s.runtime.DestroyImage(ctx, req.Tag); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, nil)
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds := s.builds
	launches := s.launches
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running:  true,
		Version:  internal.VersionString(),
		Pid:      os.Getpid(),
		Uptime:   uptime.String(),
		Builds:   builds,
		Launches: launches,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
