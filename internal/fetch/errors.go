package fetch

import (
	"errors"
	"fmt"
)

var (
	ErrMissingVersion = errors.New("dependency version must be specified with --dependency-version")
	ErrInvalidVersion = errors.New("dependency version must not contain path elements")
	ErrDownload       = errors.New("download failed")
	ErrDigestMismatch = errors.New("digest mismatch")
)

// Returned when the artifact cannot be transferred.
//
// Status is the HTTP status code when the server answered, zero for
// transport failures.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d", ErrDownload, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDownload, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownload}
	}
	return []error{ErrDownload, e.Err}
}
