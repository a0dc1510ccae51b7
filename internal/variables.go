package internal

import (
	"fmt"
	"runtime"
	"strings"
)

// Name of the daemon, used for logger groups, socket paths, and CLI help.
const Name = "kilnd"

const (

	// String to indicate an undefined build variable.
	defaultUndefined = "(undefined)"

	// String to indicate a local (non-pipeline) build.
	defaultLocalBuild = "(local)"
)

var (
	version   = "" // Version number (e.g., "0.3.1")
	gitCommit = "" // Git commit hash (e.g., "a1b2c3d4")
	buildDate = "" // Build timestamp (e.g., "2026-02-11")

	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose logging
)

// Returns the current version.
//
// If the version is not set, returns "(undefined)". A leading "v" or "V"
// prefix (e.g., "v1.0.0") is stripped.
func Version() string {
	v := strings.TrimSpace(version)
	if v == "" {
		return defaultUndefined
	}

	v = strings.ToLower(v)
	v = strings.TrimPrefix(v, "v")

	return v
}

// Returns the git commit hash, or "(undefined)" when not set.
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		return defaultUndefined
	}
	return c
}

// Returns the build timestamp, or "(undefined)" when not set.
func BuildDate() string {
	d := strings.TrimSpace(buildDate)
	if d == "" {
		return defaultUndefined
	}
	return d
}

// Returns the build platform as os/arch.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Returns true if this is a local (non-pipeline) build.
//
// A build is considered local if either the version or the git commit is
// unset. Pipeline builds should set both via linker flags.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" || strings.TrimSpace(gitCommit) == ""
}

// Returns a detailed version string.
//
// If this is a local build, returns "(local)". Otherwise, returns a string
// formatted as "<version> (<git-commit>, <date>) <os>/<arch>".
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}

	return fmt.Sprintf("%s (%s, %s) %s", Version(), GitCommit(), BuildDate(), Platform())
}
