package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/opencontainers/go-digest"
)

const defaultRegistry = "docker.io"

// Expands a short image reference the way Docker clients do. A bare
// name maps to the library repository on docker.io, and a reference
// whose first component is not a registry host gets the default
// registry prepended. Fully qualified references pass through
// unchanged.
func Normalize(ref string) string {
	if !strings.Contains(ref, "/") {
		return defaultRegistry + "/library/" + ref
	}
	host, _, _ := strings.Cut(ref, "/")
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") && host != "localhost" {
		return defaultRegistry + "/" + ref
	}
	return ref
}

// Checks that a registry can serve the referenced image and returns the
// normalized reference together with the manifest digest it currently
// points at. Only the manifest head is requested; no layer content is
// transferred.
func Resolve(ctx context.Context, ref string) (string, digest.Digest, error) {
	normalized := Normalize(ref)

	parsed, err := name.ParseReference(normalized)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrReference, err)
	}

	desc, err := remote.Head(parsed, remote.WithContext(ctx))
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrUnavailable, normalized, err)
	}

	return normalized, digest.Digest(desc.Digest.String()), nil
}
