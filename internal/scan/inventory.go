package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
)

// InventoryResult is the flat file list produced by Inventory.
type InventoryResult struct {
	// Root is the absolute path that was walked.
	Root string `json:"root"`
	// Files lists every recorded file, sorted by path.
	Files []*FileEntry `json:"files"`
	// Errors lists every non-fatal failure, sorted.
	Errors []string `json:"errors"`
	// TotalSize is the sum of the recorded file sizes.
	TotalSize int64 `json:"total_size"`
	// Elapsed is the time the walk took.
	Elapsed time.Duration `json:"elapsed"`
}

// collector gathers files from concurrent fastwalk callbacks using a mutex.
type collector struct {
	mu     sync.Mutex
	files  []*FileEntry
	errors []string
	bytes  int64
}

func (c *collector) add(f *FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.files = append(c.files, f)
	c.bytes += f.Size
}

func (c *collector) addError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, msg)
}

// calculateDepth returns the depth of a path relative to the root.
func calculateDepth(path, root string) int {
	relPath := strings.TrimPrefix(path, root)

	relPath = strings.TrimPrefix(relPath, string(filepath.Separator))
	if relPath == "" {
		return 0
	}

	return strings.Count(relPath, string(filepath.Separator)) + 1
}

// Inventory collects the files below root without building a tree.
//
// It applies the same exclusion, symlink, depth and size rules as Scan but walks
// with fastwalk, in parallel and unordered; the files are sorted by path before
// returning. Directory cycles through followed symlinks are handled by fastwalk.
// Cfg.Observer is not used.
func Inventory(ctx context.Context, root string, cfg Config) (*InventoryResult, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	classifier := NewClassifier(cfg.Excludes, cfg.FollowSymlinks)
	c := &collector{}

	conf := &fastwalk.Config{
		Follow:     cfg.FollowSymlinks,
		NumWorkers: cfg.workers(),
	}

	//nolint:varnamelen // d is standard for DirEntry
	walkErr := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			c.addError(entryError(path, err))

			return nil
		}

		if path == root {
			return nil
		}

		kind, info, err := classifier.Classify(path, d)
		if err != nil {
			c.addError(entryError(path, err))

			return nil
		}

		switch kind {
		case KindExcluded:
			cfg.Log.Printf("excluding: %s", path)

			// A followed link to an excluded directory must not be listed either.
			if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
				return fastwalk.SkipDir
			}
		case KindDirectory:
			if depth := calculateDepth(path, root); cfg.depthExceeded(depth) && d.IsDir() {
				cfg.Log.Printf("not listing directory (beyond depth %d): %s", cfg.MaxDepth, path)

				return fastwalk.SkipDir
			}
		case KindFile:
			// The parent may be a followed symlink that lies beyond the depth limit.
			if cfg.depthExceeded(calculateDepth(path, root)-1) || info.Size() < cfg.MinSize {
				return nil
			}

			c.add(&FileEntry{
				Path:      path,
				Size:      info.Size(),
				ModTime:   info.ModTime(),
				Extension: extension(info.Name()),
			})
		case KindSymlinkSkip, KindOther:
		}

		return nil
	})

	sort.Slice(c.files, func(i, j int) bool { return c.files[i].Path < c.files[j].Path })
	sort.Strings(c.errors)

	res := &InventoryResult{
		Root:      root,
		Files:     c.files,
		Errors:    c.errors,
		TotalSize: c.bytes,
		Elapsed:   time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	if walkErr != nil {
		return res, fmt.Errorf("walking %q: %w", root, walkErr)
	}

	return res, nil
}
