package scan

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultExcludes lists platform housekeeping paths that are expensive or unsafe to traverse.
// They are always merged with the configured exclusions.
//
//nolint:gochecknoglobals // Config constant
var DefaultExcludes = []string{
	".Spotlight-V100",
	".fseventsd",
	".Trashes",
	".DocumentRevisions-V100",
	".TemporaryItems",
	".vol",
	"System/Volumes/Data/.Spotlight-V100",
	"Library/Mobile Documents",
	"iCloud Drive",
	"CloudStorage",
	".iCloud",
}

// Kind is the classification of a directory entry.
type Kind int

const (
	// KindExcluded marks an entry matching an exclusion; its subtree is skipped.
	KindExcluded Kind = iota
	// KindSymlinkSkip marks a symbolic link that is not followed.
	KindSymlinkSkip
	// KindFile marks a regular file.
	KindFile
	// KindDirectory marks a directory.
	KindDirectory
	// KindOther marks sockets, devices, pipes and the like, which are ignored.
	KindOther
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindExcluded:
		return "excluded"
	case KindSymlinkSkip:
		return "symlink-skip"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Classifier decides how the walker treats each directory entry.
type Classifier struct {
	names    map[string]struct{}
	patterns []string
	follow   bool
}

// NewClassifier builds a classifier from the given exclusions merged with DefaultExcludes.
// Blank patterns are dropped since an empty substring would match every path.
func NewClassifier(excludes []string, follow bool) *Classifier {
	c := &Classifier{
		names:  make(map[string]struct{}, len(DefaultExcludes)+len(excludes)),
		follow: follow,
	}

	for _, list := range [][]string{DefaultExcludes, excludes} {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}

			if _, seen := c.names[p]; seen {
				continue
			}

			c.names[p] = struct{}{}
			c.patterns = append(c.patterns, p)
		}
	}

	return c
}

// Patterns returns the effective exclusion patterns.
func (c *Classifier) Patterns() []string {
	return append([]string(nil), c.patterns...)
}

// Excluded reports whether an entry is excluded: either its base name equals a
// pattern, or a pattern occurs anywhere in its full path. The substring form is
// intentionally coarse: "git" also excludes "/home/me/digital".
func (c *Classifier) Excluded(path, name string) bool {
	if _, ok := c.names[name]; ok {
		return true
	}

	for _, p := range c.patterns {
		if strings.Contains(path, p) {
			return true
		}
	}

	return false
}

// Classify decides the kind of the entry d found at path.
//
// For files the returned FileInfo carries size and modification time. For
// directories reached through a followed symlink it describes the target.
// A non-nil error means the entry could not be inspected and must be skipped.
func (c *Classifier) Classify(path string, d fs.DirEntry) (Kind, fs.FileInfo, error) {
	if c.Excluded(path, d.Name()) {
		return KindExcluded, nil, nil
	}

	if d.Type()&fs.ModeSymlink != 0 {
		if !c.follow {
			return KindSymlinkSkip, nil, nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return KindOther, nil, err
		}

		return kindOf(info.Mode()), info, nil
	}

	if d.IsDir() {
		return KindDirectory, nil, nil
	}

	if !d.Type().IsRegular() {
		return KindOther, nil, nil
	}

	info, err := d.Info()
	if err != nil {
		return KindOther, nil, err
	}

	return KindFile, info, nil
}

func kindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}
