package protocol

import "github.com/kilnhq/kilnd/internal/plan"

// Asks the daemon to bake an image from a build plan.
type BuildRequest struct {
	Plan     plan.Plan `json:"plan"`
	Root     string    `json:"root"`               // Directory copy sources are resolved against.
	Tag      string    `json:"tag"`                // Reference the finished image is stored under.
	Output   string    `json:"output,omitempty"`   // Directory to export an image archive into. Empty skips export.
	Platform string    `json:"platform,omitempty"` // Target platform. Empty uses the daemon host platform.
}

// Reports a completed build.
type BuildResult struct {
	Tag    string `json:"tag"`
	Digest string `json:"digest"`
	Output string `json:"output,omitempty"`
}

// Asks the daemon to launch a container from a baked image and wait for
// its entry process to exit.
type RunRequest struct {
	Image   string   `json:"image"`
	Command []string `json:"command,omitempty"` // Override for the recorded startup command.
	Keep    bool     `json:"keep,omitempty"`    // Preserve the instance after exit instead of destroying it.
}

// Reports a finished container run.
type RunResult struct {
	InstanceID string `json:"instance_id"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Asks the daemon to import an image archive from a host path.
type ImageImportRequest struct {
	Path string `json:"path"`
	Tag  string `json:"tag,omitempty"` // Override for the reference recorded in the archive.
}

// Asks the daemon to remove a stored image.
type ImageDestroyRequest struct {
	Tag string `json:"tag"`
}

// Lists the images held by the daemon.
type ImagesResult struct {
	Images []ImageInfo `json:"images"`
}

// Describes one stored image.
type ImageInfo struct {
	Tag       string `json:"tag"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

// Reports daemon health and counters.
type StatusResult struct {
	Running  bool   `json:"running"`
	Version  string `json:"version"`
	Pid      int    `json:"pid"`
	Uptime   string `json:"uptime"`
	Builds   int    `json:"builds"`
	Launches int    `json:"launches"`
}

// Carries a failure diagnostic back to the client.
type ErrorResult struct {
	Message string `json:"message"`
}
