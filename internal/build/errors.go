package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrNoInstaller         = errors.New("no installer was built in this pass")
	ErrInvalidOptions      = errors.New("invalid build options")
)
