// Package client implements the CLI side of the daemon socket protocol.
//
// A client opens one connection per request, writes a newline-delimited
// JSON envelope, and reads the single response before closing the
// connection. Errors reported by the daemon are surfaced as [ErrDaemon]
// with the daemon's message; transport failures map to [ErrUnavailable].
package client
