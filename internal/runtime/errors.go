package runtime

import "errors"

var (
	ErrRuntime        = errors.New("runtime error")
	ErrStart          = errors.New("failed to start process")
	ErrEmptyCommand   = errors.New("empty command")
	ErrEmptyArchive   = errors.New("archive contains no images")
	ErrMultipleImages = errors.New("archive contains more than one image")
)
