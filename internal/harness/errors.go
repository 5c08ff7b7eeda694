package harness

import "errors"

var (
	ErrSidecar         = errors.New("sidecar failed")
	ErrSidecarNotReady = errors.New("sidecar did not become ready")
	ErrSuite           = errors.New("test suite could not be run")
)
