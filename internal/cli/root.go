package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kilnhq/kilnd/internal"
	"github.com/kilnhq/kilnd/internal/client"
)

// Represents the root command for kilnd.
//
// One binary carries both the daemon (start) and the client subcommands
// that talk to it over the socket.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Socket  string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`

	Start    StartCmd    `cmd:"" help:"Start the daemon."`
	Build    BuildCmd    `cmd:"" help:"Build an image from a plan."`
	Run      RunCmd      `cmd:"" help:"Run a container from a built image."`
	Images   ImagesCmd   `cmd:"" help:"List stored images."`
	Import   ImportCmd   `cmd:"" help:"Import an image from an OCI archive."`
	Destroy  DestroyCmd  `cmd:"" help:"Remove an image and its containers."`
	Status   StatusCmd   `cmd:"" help:"Show daemon status."`
	Shutdown ShutdownCmd `cmd:"" help:"Stop the daemon."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Bakes container images from build plans and runs them.\n\nThe start subcommand runs the daemon; the remaining subcommands talk to it over a Unix domain socket."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Adjusts the global log level based on CLI flags.
//
// Flags only ever raise a mode; build-time defaults set via linker flags
// stay in effect when the flag is absent.
func configureLogger() {
	if RootCmd.Quiet {
		internal.SetQuiet(true)
	}
	if RootCmd.Debug {
		internal.SetDebug(true)
	}
	if RootCmd.Verbose {
		internal.SetVerbose(true)
	}

	switch {
	case internal.IsDebug():
		internal.LogLevel.Set(slog.LevelDebug)
	case internal.IsQuiet():
		internal.LogLevel.Set(slog.LevelWarn)
	default:
		internal.LogLevel.Set(slog.LevelInfo)
	}

	// Verbose changes the handler, not just the level, so the default
	// logger installed in main has to be replaced.
	if internal.IsVerbose() {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     internal.LogLevel,
			AddSource: true,
		})
		slog.SetDefault(slog.New(handler.WithGroup(internal.Name)))
	}
}

// Returns a daemon client honoring the socket override.
func daemon() *client.Client {
	return client.New(RootCmd.Socket)
}
