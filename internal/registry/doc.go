// Package registry resolves base image references against container
// registries.
//
// References are normalized the way Docker clients normalize them, so a
// plan can name its base as "python:3" and have it expand to
// "docker.io/library/python:3". Resolve additionally probes the
// registry with a manifest head request, which lets callers reject an
// unreachable or unknown base before any pull traffic.
package registry
