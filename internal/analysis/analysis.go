// Package analysis derives rankings and breakdowns from a scan result.
package analysis

import (
	"cmp"
	"math"
	"slices"

	"github.com/idelchi/diskscan/internal/scan"
	"github.com/idelchi/diskscan/internal/size"
)

// ExtStat represents statistics for a file extension.
type ExtStat struct {
	// Extension is the lowercased extension or scan.NoExtension.
	Extension string `json:"extension"`
	// Count is the number of files with this extension.
	Count int `json:"file_count"`
	// Size is the cumulative size in bytes.
	Size int64 `json:"total_size"`
	// FormattedSize is Size in human-readable form.
	FormattedSize string `json:"formatted_size"`
}

// FileStat represents a single file or directory path and size.
type FileStat struct {
	// Path is the file or directory path.
	Path string `json:"path"`
	// Size is the size in bytes.
	Size int64 `json:"size"`
	// FormattedSize is Size in human-readable form.
	FormattedSize string `json:"formatted_size"`
	// FileCount is the number of direct files, for directories.
	FileCount int `json:"file_count,omitempty"`
	// Extension is set for files.
	Extension string `json:"extension,omitempty"`
}

// Bucket is one range of the size distribution.
type Bucket struct {
	// Label names the range, e.g. "1 MB - 10 MB".
	Label string `json:"label"`
	// Count is the number of files in the range.
	Count int `json:"count"`
	// Size is the cumulative size of those files.
	Size int64 `json:"total_size"`

	min, max int64
}

// Summary holds the headline numbers of a scan.
type Summary struct {
	RootPath      string `json:"root_path"`
	TotalSize     int64  `json:"total_size"`
	FormattedSize string `json:"formatted_size"`
	TotalFiles    int64  `json:"total_files"`
	TotalDirs     int64  `json:"total_dirs"`
	ErrorCount    int    `json:"errors_count"`
}

// TreeNode is a directory in the size-sorted tree view.
type TreeNode struct {
	Name          string      `json:"name"`
	Path          string      `json:"path"`
	Size          int64       `json:"size"`
	FormattedSize string      `json:"formatted_size"`
	FileCount     int         `json:"file_count"`
	Error         string      `json:"error,omitempty"`
	Children      []*TreeNode `json:"children"`
}

// GetSummary returns the headline numbers of res.
func GetSummary(res *scan.Result) Summary {
	return Summary{
		RootPath:      res.Root.Path,
		TotalSize:     res.TotalSize,
		FormattedSize: size.Format(res.TotalSize),
		TotalFiles:    res.FilesScanned,
		TotalDirs:     res.DirsScanned,
		ErrorCount:    len(res.Errors),
	}
}

// TopDirectories returns the n largest directories, the root included, largest first.
func TopDirectories(res *scan.Result, n int) []FileStat {
	dirs := append([]*scan.DirectoryNode{res.Root}, res.Dirs...)

	slices.SortStableFunc(dirs, func(a, b *scan.DirectoryNode) int {
		return cmp.Compare(b.TotalSize, a.TotalSize)
	})

	dirs = dirs[:min(n, len(dirs))]

	stats := make([]FileStat, len(dirs))
	for i, d := range dirs {
		stats[i] = FileStat{
			Path:          d.Path,
			Size:          d.TotalSize,
			FormattedSize: size.Format(d.TotalSize),
			FileCount:     d.FileCount,
		}
	}

	return stats
}

// TopFiles returns the n largest files, largest first.
func TopFiles(res *scan.Result, n int) []FileStat {
	files := slices.Clone(res.Files)

	slices.SortStableFunc(files, func(a, b *scan.FileEntry) int {
		return cmp.Compare(b.Size, a.Size)
	})

	files = files[:min(n, len(files))]

	stats := make([]FileStat, len(files))
	for i, f := range files {
		stats[i] = FileStat{
			Path:          f.Path,
			Size:          f.Size,
			FormattedSize: size.Format(f.Size),
			Extension:     f.Extension,
		}
	}

	return stats
}

// ExtensionStats groups files by extension, largest total first.
func ExtensionStats(res *scan.Result) []ExtStat {
	byExt := make(map[string]*ExtStat)

	for _, f := range res.Files {
		stat, ok := byExt[f.Extension]
		if !ok {
			stat = &ExtStat{Extension: f.Extension}
			byExt[f.Extension] = stat
		}

		stat.Count++
		stat.Size += f.Size
	}

	stats := make([]ExtStat, 0, len(byExt))
	for _, stat := range byExt {
		stat.FormattedSize = size.Format(stat.Size)
		stats = append(stats, *stat)
	}

	slices.SortFunc(stats, func(a, b ExtStat) int {
		return cmp.Or(cmp.Compare(b.Size, a.Size), cmp.Compare(a.Extension, b.Extension))
	})

	return stats
}

// SizeDistribution counts files per fixed size range.
func SizeDistribution(res *scan.Result) []Bucket {
	const (
		kb = int64(1024)
		mb = 1024 * kb
		gb = 1024 * mb
	)

	buckets := []Bucket{
		{Label: "< 1 KB", min: 0, max: kb},
		{Label: "1 KB - 100 KB", min: kb, max: 100 * kb},
		{Label: "100 KB - 1 MB", min: 100 * kb, max: mb},
		{Label: "1 MB - 10 MB", min: mb, max: 10 * mb},
		{Label: "10 MB - 100 MB", min: 10 * mb, max: 100 * mb},
		{Label: "100 MB - 1 GB", min: 100 * mb, max: gb},
		{Label: "> 1 GB", min: gb, max: math.MaxInt64},
	}

	for _, f := range res.Files {
		for i := range buckets {
			if f.Size >= buckets[i].min && f.Size < buckets[i].max {
				buckets[i].Count++
				buckets[i].Size += f.Size

				break
			}
		}
	}

	return buckets
}

// Tree returns the directory tree down to maxDepth levels below the root,
// with children sorted by descending size.
func Tree(res *scan.Result, maxDepth int) *TreeNode {
	return buildTree(res.Root, 0, maxDepth)
}

func buildTree(d *scan.DirectoryNode, depth, maxDepth int) *TreeNode {
	node := &TreeNode{
		Name:          d.Name(),
		Path:          d.Path,
		Size:          d.TotalSize,
		FormattedSize: size.Format(d.TotalSize),
		FileCount:     d.FileCount,
		Error:         d.Err,
		Children:      []*TreeNode{},
	}

	if depth >= maxDepth {
		return node
	}

	children := d.SortedChildren()
	slices.SortStableFunc(children, func(a, b *scan.DirectoryNode) int {
		return cmp.Compare(b.TotalSize, a.TotalSize)
	})

	for _, child := range children {
		node.Children = append(node.Children, buildTree(child, depth+1, maxDepth))
	}

	return node
}
