package scan

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// NoExtension is the extension recorded for files without one.
const NoExtension = "(no extension)"

// FileEntry is a single file recorded during a scan. It is never modified after creation.
type FileEntry struct {
	// Path is the absolute path of the file.
	Path string `json:"path"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// ModTime is the last modification time.
	ModTime time.Time `json:"mod_time"`
	// Extension is the lowercased extension including the dot, or NoExtension.
	Extension string `json:"extension"`
}

// Name returns the base name of the file.
func (f *FileEntry) Name() string {
	return filepath.Base(f.Path)
}

// DirectoryNode is a directory in the scanned tree.
// Each node exclusively owns its files and children.
type DirectoryNode struct {
	// Path is the absolute path of the directory.
	Path string `json:"path"`
	// TotalSize is the size of the node's files plus the TotalSize of every scanned child.
	TotalSize int64 `json:"total_size"`
	// FileCount is the number of files recorded directly in this directory.
	FileCount int `json:"file_count"`
	// DirCount is the number of direct subdirectories.
	DirCount int `json:"dir_count"`
	// Files holds the recorded files in listing order.
	Files []*FileEntry `json:"-"`
	// Children maps subdirectory names to their nodes.
	Children map[string]*DirectoryNode `json:"-"`
	// Err is set when the directory could not be listed.
	Err string `json:"error,omitempty"`

	// errs holds messages for failures raised while processing this directory.
	errs []string
}

func newDirectoryNode(path string) *DirectoryNode {
	return &DirectoryNode{
		Path:     path,
		Children: make(map[string]*DirectoryNode),
	}
}

// Name returns the base name of the directory, or its path for filesystem roots.
func (d *DirectoryNode) Name() string {
	name := filepath.Base(d.Path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return d.Path
	}

	return name
}

// SortedChildren returns the children ordered by name.
func (d *DirectoryNode) SortedChildren() []*DirectoryNode {
	names := make([]string, 0, len(d.Children))
	for name := range d.Children {
		names = append(names, name)
	}

	sort.Strings(names)

	children := make([]*DirectoryNode, len(names))
	for i, name := range names {
		children[i] = d.Children[name]
	}

	return children
}

// Result is the outcome of a scan.
type Result struct {
	// Root is the scanned root directory.
	Root *DirectoryNode `json:"root"`
	// TotalSize equals Root.TotalSize.
	TotalSize int64 `json:"total_size"`
	// FilesScanned is the number of recorded files.
	FilesScanned int64 `json:"files_scanned"`
	// DirsScanned is the number of recorded directories, the root excluded.
	DirsScanned int64 `json:"dirs_scanned"`
	// Errors lists every non-fatal failure in a stable order.
	Errors []string `json:"errors"`
	// Files lists every recorded file.
	Files []*FileEntry `json:"-"`
	// Dirs lists every recorded directory except the root, each after its own subtree.
	Dirs []*DirectoryNode `json:"-"`
	// Elapsed is the time the scan took.
	Elapsed time.Duration `json:"elapsed"`
}

// extension returns the lowercased extension of name, or NoExtension.
// A leading dot alone does not start an extension, so ".bashrc" has none.
func extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return NoExtension
	}

	return strings.ToLower(ext)
}
