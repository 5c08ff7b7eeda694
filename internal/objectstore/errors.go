package objectstore

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid publish configuration")
	ErrUpload        = errors.New("upload failed")
)
