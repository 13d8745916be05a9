package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/scan"
)

func TestWriteSQLite(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "a.txt"), "0123456789")
	write(t, filepath.Join(root, "sub", "b.txt"), "duplicate!")
	write(t, filepath.Join(root, "sub", "c.txt"), "duplicate!")

	ctx := context.Background()

	res, err := scan.Scan(ctx, root, scan.DefaultConfig())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	found, err := dupes.Find(ctx, res.Files, dupes.Options{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "out.db")

	// A second export must replace the first rather than fail on existing rows.
	for range 2 {
		if err := WriteSQLite(ctx, dbPath, res, found.Groups); err != nil {
			t.Fatalf("export failed: %v", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	counts := map[string]int{
		"directories":       2,
		"files":             3,
		"duplicate_groups":  1,
		"duplicate_members": 2,
		"errors":            0,
	}

	for table, want := range counts {
		var got int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}

		if got != want {
			t.Fatalf("%s: got %d rows, want %d", table, got, want)
		}
	}

	var total int64
	if err := db.QueryRow("SELECT total_size FROM directories WHERE path = ?", res.Root.Path).Scan(&total); err != nil {
		t.Fatal(err)
	}

	if total != 30 {
		t.Fatalf("expected root total 30, got %d", total)
	}

	var wasted int64
	if err := db.QueryRow("SELECT wasted FROM duplicate_groups WHERE id = 1").Scan(&wasted); err != nil {
		t.Fatal(err)
	}

	if wasted != 10 {
		t.Fatalf("expected 10 bytes wasted, got %d", wasted)
	}
}

func TestWriteSQLite_FailureKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "notes.txt")

	write(t, target, "not a database")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WriteSQLite(ctx, target, nil, nil); err == nil {
		t.Fatal("expected the export to fail on a cancelled context")
	}

	got, err := os.ReadFile(target)
	if err != nil || string(got) != "not a database" {
		t.Fatalf("existing file was modified: %q, %v", got, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
