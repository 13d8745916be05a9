//go:build windows

package scan

import "io/fs"

type fileID struct {
	dev uint64
	ino uint64
}

// identity is not available on Windows; cycle tracking is disabled there.
func identity(fs.FileInfo) (fileID, bool) {
	return fileID{}, false
}
