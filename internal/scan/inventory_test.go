package scan

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/idelchi/diskscan/internal/logger"
)

func TestInventory_MatchesScan(t *testing.T) {
	root := t.TempDir()

	writeSized(t, filepath.Join(root, "a.txt"), 100)
	writeSized(t, filepath.Join(root, "tiny.txt"), 2)
	writeSized(t, filepath.Join(root, "sub", "b.txt"), 200)
	writeSized(t, filepath.Join(root, "sub", "deeper", "c.txt"), 300)
	writeSized(t, filepath.Join(root, "sub", "deeper", "further", "d.txt"), 400)
	writeSized(t, filepath.Join(root, "zzpruned", "e.txt"), 500)

	for _, maxDepth := range []int{NoDepthLimit, 0, 1, 2} {
		cfg := DefaultConfig()
		cfg.Excludes = []string{"zzpruned"}
		cfg.MinSize = 10
		cfg.MaxDepth = maxDepth

		scanned := mustScan(t, root, cfg)

		inv, err := Inventory(context.Background(), root, cfg)
		if err != nil {
			t.Fatalf("inventory failed: %v", err)
		}

		want := filePaths(scanned.Files)
		slices.Sort(want)

		if got := filePaths(inv.Files); !slices.Equal(got, want) {
			t.Fatalf("max depth %d: inventory %v, scan %v", maxDepth, got, want)
		}

		if inv.TotalSize != scanned.TotalSize {
			t.Fatalf("max depth %d: inventory total %d, scan total %d", maxDepth, inv.TotalSize, scanned.TotalSize)
		}
	}
}

func TestInventory_ExcludedSymlinkNotListed(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()

	writeSized(t, filepath.Join(root, "kept.txt"), 10)
	writeSized(t, filepath.Join(target, "hidden.txt"), 20)
	symlink(t, target, filepath.Join(root, "link"))

	var out syncBuffer

	cfg := DefaultConfig()
	cfg.Excludes = []string{"link"}
	cfg.FollowSymlinks = true
	cfg.Log = logger.New(true, &out)

	inv, err := Inventory(context.Background(), root, cfg)
	if err != nil {
		t.Fatalf("inventory failed: %v", err)
	}

	if got := filePaths(inv.Files); !slices.Equal(got, []string{filepath.Join(root, "kept.txt")}) {
		t.Fatalf("unexpected files %v", got)
	}

	if log := out.String(); strings.Contains(log, "hidden.txt") {
		t.Fatalf("excluded link target was listed:\n%s", log)
	}
}

func TestInventory_Preconditions(t *testing.T) {
	if _, err := Inventory(context.Background(), filepath.Join(t.TempDir(), "missing"), DefaultConfig()); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("expected ErrRootNotFound, got %v", err)
	}
}

func TestCalculateDepth(t *testing.T) {
	root := filepath.Join("data", "root")

	tests := []struct {
		path string
		want int
	}{
		{root, 0},
		{filepath.Join(root, "a"), 1},
		{filepath.Join(root, "a", "b", "c.txt"), 3},
	}

	for _, tt := range tests {
		if got := calculateDepth(tt.path, root); got != tt.want {
			t.Fatalf("calculateDepth(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

// syncBuffer is a bytes.Buffer safe for the concurrent fastwalk callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
