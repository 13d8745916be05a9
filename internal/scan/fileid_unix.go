//go:build !windows

package scan

import (
	"io/fs"
	"syscall"
)

// fileID identifies a directory across symlinks.
type fileID struct {
	dev uint64
	ino uint64
}

// identity extracts the device and inode of info.
func identity(info fs.FileInfo) (fileID, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, false
	}

	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true //nolint:unconvert // Width differs per platform
}
