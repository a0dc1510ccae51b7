package registry

import "errors"

var (
	ErrReference   = errors.New("invalid image reference")
	ErrUnavailable = errors.New("image unavailable")
)
