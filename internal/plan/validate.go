package plan

import (
	"fmt"
	"path"
)

// Checks that the plan is complete enough to build.
//
// Existence of copy sources is not checked here; that is a build-time
// concern resolved against the build context root.
func (p *Plan) Validate() error {
	if p.Base == "" {
		return fmt.Errorf("%w: base image reference is required", ErrPlan)
	}

	for i, entry := range p.Copies {
		if err := entry.validate(); err != nil {
			return fmt.Errorf("%w: copy entry %d: %w", ErrPlan, i+1, err)
		}
	}

	if p.Install != nil {
		if err := p.Install.validate(); err != nil {
			return fmt.Errorf("%w: install: %w", ErrPlan, err)
		}
	}

	if len(p.Command) == 0 || p.Command[0] == "" {
		return fmt.Errorf("%w: command must name an executable", ErrInvalidStartupCommand)
	}

	return nil
}

func (e CopyEntry) validate() error {
	if e.Src == "" {
		return fmt.Errorf("source is required")
	}
	if e.Dest == "" {
		return fmt.Errorf("destination is required")
	}
	if !path.IsAbs(e.Dest) {
		return fmt.Errorf("destination %q must be absolute", e.Dest)
	}
	return nil
}

func (i *Install) validate() error {
	if i.Manifest == "" {
		return fmt.Errorf("manifest path is required")
	}
	if !path.IsAbs(i.Manifest) {
		return fmt.Errorf("manifest path %q must be absolute", i.Manifest)
	}
	for _, arg := range i.Tool {
		if arg == "" {
			return fmt.Errorf("tool contains an empty argument")
		}
	}
	return nil
}
