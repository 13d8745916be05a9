package scan

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrRootNotFound is returned when the scan root does not exist.
	ErrRootNotFound = errors.New("root path does not exist")
	// ErrNotDirectory is returned when the scan root is not a directory.
	ErrNotDirectory = errors.New("root path is not a directory")
	// ErrInterrupted is returned alongside a partial result when the scan is cancelled.
	ErrInterrupted = errors.New("scan interrupted")
)

// entryError renders a per-entry or per-directory failure for the error log.
func entryError(path string, err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return "permission denied: " + path
	}

	return fmt.Sprintf("access error %s: %v", path, err)
}
