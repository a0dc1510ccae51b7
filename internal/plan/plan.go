package plan

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Default installer invocation, completed with the manifest path.
var defaultInstallTool = []string{"pip", "install", "-r"}

// A build descriptor: the inputs needed to bake one image.
//
// The sections execute in a fixed order: the base image is resolved first,
// copy entries are applied in declaration order, dependency installation
// runs after all copies (so a copied manifest is present in the image
// before the installer reads it), and the startup command is recorded
// last as image metadata.
type Plan struct {
	Base    string      `json:"base"`              // Base image reference (name and optional tag).
	Copies  []CopyEntry `json:"copy,omitempty"`    // Ordered list of files and directories to copy in.
	Install *Install    `json:"install,omitempty"` // Optional dependency installation instruction.
	Command []string    `json:"command"`           // Startup command recorded in image metadata, verbatim.
}

// A single copy instruction: material from the build context placed at a
// destination inside the image.
//
// A directory source contributes its contents under the destination, not
// the directory itself, so "src: app, dest: /" places app's files at the
// image root.
type CopyEntry struct {
	Src  string `json:"src"`  // Source path, resolved against the build context root unless absolute.
	Dest string `json:"dest"` // Absolute destination path inside the image.
}

// The dependency installation instruction.
//
// The manifest is an opaque text artifact (one dependency specification
// per line) handed verbatim to the installer; resolution is entirely the
// installer's concern.
type Install struct {
	Manifest string   `json:"manifest"`       // Absolute in-image path of the dependency manifest.
	Tool     []string `json:"tool,omitempty"` // Installer argv prefix. Defaults to "pip install -r".
}

// Returns the full installer argv: the tool prefix followed by the
// manifest path.
func (i *Install) Argv() []string {
	tool := i.Tool
	if len(tool) == 0 {
		tool = defaultInstallTool
	}
	argv := make([]string, 0, len(tool)+1)
	argv = append(argv, tool...)
	return append(argv, i.Manifest)
}

// Reads and parses a plan file, then validates it.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlan, err)
	}
	return Parse(data)
}

// Parses a YAML plan document and validates it.
//
// Unknown fields are rejected so that a typo in a section name fails the
// build instead of silently dropping the instruction.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlan, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}
