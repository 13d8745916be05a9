package dupes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/idelchi/diskscan/internal/hashing"
	"github.com/idelchi/diskscan/internal/scan"
)

func TestFind_ConcreteScenario(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "a.txt"), strings.Repeat("a", 100))
	write(t, filepath.Join(root, "sub", "b.txt"), strings.Repeat("x", 200))
	write(t, filepath.Join(root, "sub", "c.txt"), strings.Repeat("x", 200))

	res, err := scan.Scan(context.Background(), root, scan.DefaultConfig())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	got := mustFind(t, res.Files, Options{})

	if len(got.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(got.Groups))
	}

	g := got.Groups[0]
	if g.Count() != 2 || g.Size != 200 || g.Wasted != 200 {
		t.Fatalf("unexpected group: count=%d size=%d wasted=%d", g.Count(), g.Size, g.Wasted)
	}

	if g.Files[0] != res.Files[1] && g.Files[0] != res.Files[2] {
		t.Fatal("groups must reference the scanned entries")
	}

	if got.TotalWasted() != 200 {
		t.Fatalf("expected 200 bytes wasted, got %d", got.TotalWasted())
	}
}

func TestFind_EqualSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "one", "aaaa"),
		entry(t, dir, "two", "bbbb"),
		entry(t, dir, "three", "cccc"),
	}

	if got := mustFind(t, files, Options{}); len(got.Groups) != 0 {
		t.Fatalf("expected no groups, got %+v", got.Groups)
	}
}

func TestFind_SamePrefixDifferentTail(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "a", "header--tail-1"),
		entry(t, dir, "b", "header--tail-2"),
		entry(t, dir, "c", "header--tail-1"),
	}

	got := mustFind(t, files, Options{PartialBytes: 8})

	if len(got.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(got.Groups))
	}

	if paths := groupPaths(got.Groups[0]); !slices.Equal(paths, []string{files[0].Path, files[2].Path}) {
		t.Fatalf("unexpected members: %v", paths)
	}
}

func TestFind_SmallFilesSkipFullStage(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "a", "same"),
		entry(t, dir, "b", "same"),
	}

	var stages []Stage

	opts := Options{
		Workers: 1,
		Observer: ObserverFunc(func(processed, total int, stage Stage) {
			if stage == StageFull && total > 0 {
				stages = append(stages, stage)
			}
		}),
	}

	got := mustFind(t, files, opts)

	if len(got.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(got.Groups))
	}

	if len(stages) != 0 {
		t.Fatal("files covered by the prefix must not be hashed again")
	}

	h, err := hashing.New(hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}

	full, err := h.Full(context.Background(), files[0].Path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Groups[0].Signature != full {
		t.Fatal("signature must be the full content hash")
	}
}

func TestFind_MinSize(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "small1", "xy"),
		entry(t, dir, "small2", "xy"),
		entry(t, dir, "large1", strings.Repeat("z", 64)),
		entry(t, dir, "large2", strings.Repeat("z", 64)),
	}

	got := mustFind(t, files, Options{MinSize: 10})

	if len(got.Groups) != 1 || got.Groups[0].Size != 64 {
		t.Fatalf("expected only the large pair, got %+v", got.Groups)
	}
}

func TestFind_OrderedByWastedSpace(t *testing.T) {
	dir := t.TempDir()

	var files []*scan.FileEntry

	for i := range 4 {
		files = append(files, entry(t, dir, "hundred"+string(rune('a'+i)), strings.Repeat("h", 100)))
	}

	files = append(files,
		entry(t, dir, "big1", strings.Repeat("b", 250)),
		entry(t, dir, "big2", strings.Repeat("b", 250)),
		entry(t, dir, "mid1", strings.Repeat("m", 120)),
		entry(t, dir, "mid2", strings.Repeat("m", 120)),
	)

	got := mustFind(t, files, Options{PartialBytes: 16})

	var wasted []int64
	for _, g := range got.Groups {
		wasted = append(wasted, g.Wasted)
	}

	if !slices.Equal(wasted, []int64{300, 250, 120}) {
		t.Fatalf("expected descending wasted space, got %v", wasted)
	}
}

func TestFind_Deterministic(t *testing.T) {
	dir := t.TempDir()

	var files []*scan.FileEntry

	for i, content := range []string{"alpha", "alpha", "bravo", "bravo", "bravo", "charl", "delta", "delta"} {
		files = append(files, entry(t, dir, string(rune('a'+i))+".txt", content))
	}

	first := mustFind(t, files, Options{Workers: 8})
	second := mustFind(t, files, Options{Workers: 3})

	if len(first.Groups) != 3 || len(first.Groups) != len(second.Groups) {
		t.Fatalf("expected 3 groups in both runs, got %d and %d", len(first.Groups), len(second.Groups))
	}

	for i := range first.Groups {
		a, b := first.Groups[i], second.Groups[i]
		if a.Signature != b.Signature || a.Wasted != b.Wasted || !slices.Equal(groupPaths(a), groupPaths(b)) {
			t.Fatalf("group %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestFind_HashFailureDropsFile(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "a", "content"),
		entry(t, dir, "b", "content"),
		entry(t, dir, "gone", "content"),
	}

	if err := os.Remove(files[2].Path); err != nil {
		t.Fatal(err)
	}

	got := mustFind(t, files, Options{})

	if len(got.Groups) != 1 || got.Groups[0].Count() != 2 {
		t.Fatalf("expected the two readable files grouped, got %+v", got.Groups)
	}

	if len(got.Failures) != 1 || got.Failures[0].Path != files[2].Path || got.Failures[0].Op != hashing.OpPartial {
		t.Fatalf("expected one partial hash failure, got %v", got.Failures)
	}
}

func TestFind_ObserverStages(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "a", "0123456789"),
		entry(t, dir, "b", "0123456789"),
		entry(t, dir, "c", "abc"),
	}

	type call struct {
		processed, total int
		stage            Stage
	}

	var calls []call

	opts := Options{
		PartialBytes: 4,
		Observer: ObserverFunc(func(processed, total int, stage Stage) {
			calls = append(calls, call{processed, total, stage})
		}),
	}

	mustFind(t, files, opts)

	var order []Stage
	for _, c := range calls {
		if len(order) == 0 || order[len(order)-1] != c.stage {
			order = append(order, c.stage)
		}
	}

	if !slices.Equal(order, []Stage{StageSize, StagePartial, StageFull}) {
		t.Fatalf("unexpected stage order: %v", order)
	}

	if last := calls[len(calls)-1]; last != (call{2, 2, StageFull}) {
		t.Fatalf("unexpected final call: %+v", last)
	}
}

func TestFind_XXHash(t *testing.T) {
	dir := t.TempDir()

	h, err := hashing.New(hashing.XXHash)
	if err != nil {
		t.Fatal(err)
	}

	files := []*scan.FileEntry{
		entry(t, dir, "a", "duplicate"),
		entry(t, dir, "b", "duplicate"),
		entry(t, dir, "c", "different"),
	}

	got := mustFind(t, files, Options{Hasher: h})

	if len(got.Groups) != 1 || got.Groups[0].Count() != 2 || len(got.Groups[0].Signature) != 16 {
		t.Fatalf("unexpected groups: %+v", got.Groups)
	}
}

func TestFind_Cancelled(t *testing.T) {
	dir := t.TempDir()

	files := []*scan.FileEntry{
		entry(t, dir, "a", "same"),
		entry(t, dir, "b", "same"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Find(ctx, files, Options{}); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func mustFind(t *testing.T, files []*scan.FileEntry, opts Options) *Result {
	t.Helper()

	res, err := Find(context.Background(), files, opts)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	return res
}

func entry(t *testing.T, dir, name, content string) *scan.FileEntry {
	t.Helper()

	path := filepath.Join(dir, name)
	write(t, path, content)

	return &scan.FileEntry{Path: path, Size: int64(len(content)), Extension: scan.NoExtension}
}

func write(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func groupPaths(g Group) []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}

	return paths
}
