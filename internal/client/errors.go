package client

import "errors"

// Client errors.
var (

	// The daemon socket could not be reached.
	ErrUnavailable = errors.New("daemon unavailable")

	// The daemon processed the request and reported a failure.
	ErrDaemon = errors.New("daemon error")
)
