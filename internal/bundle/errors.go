package bundle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVersionNotFound is returned by a Source when a release or its
// template asset does not exist. It is never retried.
var ErrVersionNotFound = errors.New("version not found")

// CacheMissError means the requested version is not in the local cache
// and the network could not or must not be used.
type CacheMissError struct {
	Version string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("templates %s are not cached locally; run once without --offline to download them", e.Version)
}

// NetworkError means the source could not be reached after all retries and
// no cached copy was available to fall back to.
type NetworkError struct {
	Version string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("downloading templates %s failed and no cached copy exists: %v (check connectivity or retry with --version=builtin)", e.Version, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// VersionNotFoundError means an explicitly requested version is not
// published. Nearest lists up to three published versions close to it.
type VersionNotFoundError struct {
	Version string
	Nearest []string
}

func (e *VersionNotFoundError) Error() string {
	msg := fmt.Sprintf("template version %s does not exist", e.Version)
	if len(e.Nearest) > 0 {
		msg += "; nearest available: " + strings.Join(e.Nearest, ", ")
	}
	return msg
}

func (e *VersionNotFoundError) Unwrap() error { return ErrVersionNotFound }

// ChecksumError means a downloaded archive did not match its published
// SHA-256 digest. The archive is discarded.
type ChecksumError struct {
	Version  string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("template archive %s failed integrity check: expected sha256 %s, got %s", e.Version, e.Expected, e.Actual)
}
