package build

import "errors"

var (
	ErrBuild                = errors.New("build failed")
	ErrFileSystemOperation  = errors.New("file system operation failed")
	ErrBaseImageUnavailable = errors.New("base image unavailable")
	ErrSourcePathMissing    = errors.New("copy source missing")
	ErrDependencyInstall    = errors.New("dependency installation failed")
)
