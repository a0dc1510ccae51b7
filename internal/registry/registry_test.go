package registry

import (
	"context"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare name",
			in:   "python",
			want: "docker.io/library/python",
		},
		{
			name: "bare name with tag",
			in:   "python:3",
			want: "docker.io/library/python:3",
		},
		{
			name: "repository without registry",
			in:   "owner/repo:tag",
			want: "docker.io/owner/repo:tag",
		},
		{
			name: "fully qualified",
			in:   "docker.io/library/python:3",
			want: "docker.io/library/python:3",
		},
		{
			name: "other registry",
			in:   "ghcr.io/owner/repo:tag",
			want: "ghcr.io/owner/repo:tag",
		},
		{
			name: "registry with port",
			in:   "localhost:5000/image:tag",
			want: "localhost:5000/image:tag",
		},
		{
			name: "localhost without port",
			in:   "localhost/image:tag",
			want: "localhost/image:tag",
		},
		{
			name: "digest reference",
			in:   "registry.example.com/team/app@sha256:1111111111111111111111111111111111111111111111111111111111111111",
			want: "registry.example.com/team/app@sha256:1111111111111111111111111111111111111111111111111111111111111111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveRejectsBadReference(t *testing.T) {
	_, _, err := Resolve(context.Background(), "not a reference")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrReference) {
		t.Fatalf("error = %v, want %v", err, ErrReference)
	}
}
