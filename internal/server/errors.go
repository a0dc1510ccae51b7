package server

import "errors"

// Server errors.
var (
	ErrServer = errors.New("server error")
)
