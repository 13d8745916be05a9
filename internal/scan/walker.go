package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/idelchi/diskscan/internal/logger"
)

// NoDepthLimit disables the depth limit.
const NoDepthLimit = -1

// Observer receives scan progress.
//
// DirectoryScanned is called after each directory has been fully processed, with
// the running totals of recorded files and directories. It may be called from
// several goroutines at once and must return quickly.
type Observer interface {
	DirectoryScanned(path string, files, dirs int64)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(path string, files, dirs int64)

// DirectoryScanned calls f.
func (f ObserverFunc) DirectoryScanned(path string, files, dirs int64) {
	f(path, files, dirs)
}

// Config configures a scan.
type Config struct {
	// Excludes are extra exclusion patterns, merged with DefaultExcludes.
	Excludes []string
	// MinSize is the minimum size in bytes for a file to be recorded.
	MinSize int64
	// MaxDepth is the deepest directory level whose contents are listed.
	// The root is depth 0. NoDepthLimit disables the limit.
	MaxDepth int
	// FollowSymlinks makes the walker descend into and size symlink targets.
	FollowSymlinks bool
	// Workers bounds the number of directories listed concurrently (0 = number of CPUs).
	Workers int
	// Observer, if set, receives progress after each directory.
	Observer Observer
	// Log receives debug output.
	Log logger.Logger
}

// DefaultConfig returns a configuration without depth limit or size filter.
func DefaultConfig() Config {
	return Config{MaxDepth: NoDepthLimit}
}

// depthExceeded reports whether the contents of a directory at depth are left unlisted.
func (c Config) depthExceeded(depth int) bool {
	return c.MaxDepth >= 0 && depth > c.MaxDepth
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}

	return runtime.NumCPU()
}

// walker holds the state shared by all directory tasks of one scan.
// Only the progress counters are mutated concurrently.
type walker struct {
	cfg        Config
	classifier *Classifier
	slots      *semaphore.Weighted
	files      atomic.Int64
	dirs       atomic.Int64
}

// pendingDir is a subdirectory discovered while listing its parent.
type pendingDir struct {
	name      string
	node      *DirectoryNode
	ancestors []fileID
}

// Scan walks the directory tree at root and returns its size-aggregated tree.
//
// It fails without a result when root does not exist or is not a directory.
// Every other filesystem failure is recorded in Result.Errors. When ctx is
// cancelled, Scan stops dispatching directories and returns the partial result
// together with an error wrapping ErrInterrupted.
func Scan(ctx context.Context, root string, cfg Config) (*Result, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	w := &walker{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Excludes, cfg.FollowSymlinks),
		slots:      semaphore.NewWeighted(int64(cfg.workers())),
	}

	cfg.Log.Printf("scanning %s (max depth %d, min size %d, follow symlinks %t)",
		root, cfg.MaxDepth, cfg.MinSize, cfg.FollowSymlinks)

	for _, p := range w.classifier.Patterns() {
		cfg.Log.Printf("  exclude: %s", p)
	}

	var ancestors []fileID

	if cfg.FollowSymlinks {
		if info, err := os.Stat(root); err == nil {
			if id, ok := identity(info); ok {
				ancestors = []fileID{id}
			}
		}
	}

	rootNode := newDirectoryNode(root)
	w.scanDir(ctx, rootNode, 0, ancestors)

	res := &Result{
		Root:      rootNode,
		TotalSize: rootNode.TotalSize,
		Errors:    []string{},
	}

	flatten(rootNode, res)

	res.FilesScanned = int64(len(res.Files))
	res.DirsScanned = int64(len(res.Dirs))
	res.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	return res, nil
}

// resolveRoot makes root absolute and checks that it is an existing directory.
func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
		}

		return "", fmt.Errorf("accessing path %q: %w", abs, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	return abs, nil
}

// scanDir lists node, records its files and scans its subdirectories before
// folding their totals into node.
func (w *walker) scanDir(ctx context.Context, node *DirectoryNode, depth int, ancestors []fileID) {
	if w.cfg.depthExceeded(depth) {
		w.cfg.Log.Printf("not listing directory (beyond depth %d): %s", w.cfg.MaxDepth, node.Path)

		return
	}

	if ctx.Err() != nil {
		return
	}

	// Partial listings still return the entries read before the failure.
	entries, err := os.ReadDir(node.Path)
	if err != nil {
		node.Err = err.Error()
		node.errs = append(node.errs, entryError(node.Path, err))
	}

	var subdirs []pendingDir

	for _, d := range entries {
		path := filepath.Join(node.Path, d.Name())

		kind, info, err := w.classifier.Classify(path, d)
		if err != nil {
			node.errs = append(node.errs, entryError(path, err))

			continue
		}

		switch kind {
		case KindExcluded:
			w.cfg.Log.Printf("excluding: %s", path)
		case KindSymlinkSkip:
			w.cfg.Log.Printf("skipping symlink: %s", path)
		case KindFile:
			w.addFile(node, path, info)
		case KindDirectory:
			chain, ok := w.descend(d, info, ancestors)
			if !ok {
				w.cfg.Log.Printf("skipping symlink cycle: %s", path)
				node.errs = append(node.errs, "symlink cycle: "+path)

				continue
			}

			subdirs = append(subdirs, pendingDir{name: d.Name(), node: newDirectoryNode(path), ancestors: chain})
		case KindOther:
		}
	}

	var (
		wg         sync.WaitGroup
		dispatched = make([]pendingDir, 0, len(subdirs))
	)

	for _, sub := range subdirs {
		if ctx.Err() != nil {
			break
		}

		dispatched = append(dispatched, sub)

		// Scan inline when no worker slot is free so waiting parents never starve their children.
		if !w.slots.TryAcquire(1) {
			w.scanDir(ctx, sub.node, depth+1, sub.ancestors)

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer w.slots.Release(1)

			w.scanDir(ctx, sub.node, depth+1, sub.ancestors)
		}()
	}

	wg.Wait()

	for _, sub := range dispatched {
		node.Children[sub.name] = sub.node
		node.TotalSize += sub.node.TotalSize
		node.DirCount++

		w.dirs.Add(1)
	}

	if w.cfg.Observer != nil && ctx.Err() == nil {
		w.cfg.Observer.DirectoryScanned(node.Path, w.files.Load(), w.dirs.Load())
	}
}

// addFile records a regular file in node unless it is below the minimum size.
func (w *walker) addFile(node *DirectoryNode, path string, info fs.FileInfo) {
	if info.Size() < w.cfg.MinSize {
		return
	}

	node.Files = append(node.Files, &FileEntry{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Extension: extension(info.Name()),
	})
	node.TotalSize += info.Size()
	node.FileCount++

	w.files.Add(1)
}

// descend returns the ancestor chain for a subdirectory, or false when entering
// it would revisit one of its ancestors through a followed symlink.
// Without symlink following no cycle is possible and no chain is kept.
func (w *walker) descend(d fs.DirEntry, info fs.FileInfo, ancestors []fileID) ([]fileID, bool) {
	if !w.cfg.FollowSymlinks {
		return nil, true
	}

	if info == nil {
		var err error
		if info, err = d.Info(); err != nil {
			return ancestors, true
		}
	}

	id, ok := identity(info)
	if !ok {
		return ancestors, true
	}

	if slices.Contains(ancestors, id) {
		return nil, false
	}

	return append(slices.Clip(ancestors), id), true
}

// flatten collects errors, files and directories below node in a stable order:
// a directory's own files first, then each child's subtree by name, with every
// child appended to Dirs after its subtree.
func flatten(node *DirectoryNode, res *Result) {
	res.Errors = append(res.Errors, node.errs...)
	res.Files = append(res.Files, node.Files...)

	for _, child := range node.SortedChildren() {
		flatten(child, res)
		res.Dirs = append(res.Dirs, child)
	}
}
