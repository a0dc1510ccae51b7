package main

import (
	"log/slog"
	"os"

	"github.com/kilnhq/kilnd/internal"
	"github.com/kilnhq/kilnd/internal/cli"
)

// The entry point for kilnd.
//
// Initializes logging, displays startup information, and executes the root
// command. If any error occurs during execution, it exits with a non-zero code.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("kilnd starting",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Creates the default logger seeded from build-time linker flags.
//
// The level variable is retuned after flag parsing via cli.Execute.
func logger() *slog.Logger {
	internal.LogLevel.Set(logLevel())

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     internal.LogLevel,
		AddSource: internal.IsVerbose(),
	})

	return slog.New(handler.WithGroup(internal.Name))
}

// Returns the log level derived from build-time linker flags.
func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
