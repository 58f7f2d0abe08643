package fetch

import (
	"context"
	"errors"
	"os"
)

// Retrieval failures. Each step of Fetch wraps exactly one of these so the
// failure can be identified with errors.Is:
//
//	if errors.Is(err, fetch.ErrLogin) {
//	    // credentials are wrong, retrying will not help
//	}
var (
	// ErrConnect is returned when the remote host cannot be reached.
	ErrConnect = errors.New("connect failed")

	// ErrLogin is returned when the remote host rejects the credentials.
	ErrLogin = errors.New("login failed")

	// ErrChangeDir is returned when the remote parent directory is missing
	// or not accessible.
	ErrChangeDir = errors.New("change directory failed")

	// ErrList is returned when the remote directory cannot be listed.
	ErrList = errors.New("directory listing failed")

	// ErrRetrieve is returned when the download itself fails.
	ErrRetrieve = errors.New("retrieve failed")

	// ErrEmptyFile is returned when the downloaded file has zero bytes.
	ErrEmptyFile = errors.New("remote file is empty")

	// ErrNoCredentials is returned when no host or file name is configured.
	ErrNoCredentials = errors.New("no remote host or file configured")
)

// IsTransient returns true if the failure is likely to clear on a later run:
// network trouble and timeouts, but not rejected credentials or missing
// configuration.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	if errors.Is(err, ErrConnect) || errors.Is(err, ErrRetrieve) || errors.Is(err, ErrList) {
		return true
	}

	// The extract may simply not have been written yet.
	if errors.Is(err, ErrEmptyFile) {
		return true
	}

	return false
}
