package runtime

import "errors"

var (
	ErrRuntime            = errors.New("runtime error")
	ErrImageNotFound      = errors.New("image not found")
	ErrEntryProcessFailed = errors.New("entry process failed")
	ErrEmptyArchive       = errors.New("archive contains no images")
	ErrMultipleImages     = errors.New("archive contains multiple images")
	ErrEmptyIndex         = errors.New("empty image index")
)
