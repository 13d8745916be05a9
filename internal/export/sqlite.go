// Package export writes scan results into a SQLite database for ad-hoc querying.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/scan"
)

const schema = `
CREATE TABLE directories (
    path TEXT PRIMARY KEY,
    total_size INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    dir_count INTEGER NOT NULL,
    error TEXT
);
CREATE TABLE files (
    path TEXT PRIMARY KEY,
    directory TEXT NOT NULL,
    size INTEGER NOT NULL,
    modified_at INTEGER NOT NULL,
    extension TEXT NOT NULL
);
CREATE TABLE duplicate_groups (
    id INTEGER PRIMARY KEY,
    signature TEXT NOT NULL,
    size INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    wasted INTEGER NOT NULL
);
CREATE TABLE duplicate_members (
    group_id INTEGER NOT NULL REFERENCES duplicate_groups(id),
    path TEXT NOT NULL
);
CREATE TABLE errors (
    seq INTEGER PRIMARY KEY,
    message TEXT NOT NULL
);
CREATE INDEX files_size ON files(size);
CREATE INDEX files_extension ON files(extension);
`

// WriteSQLite replaces the database at path with the contents of res and groups.
// Either argument may be nil.
//
// The database is built in a temporary file next to path and renamed over it
// once complete, so a failed export leaves any existing file untouched.
func WriteSQLite(ctx context.Context, path string, res *scan.Result, groups []dupes.Group) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary database: %w", err)
	}

	tmpPath := tmp.Name()

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("creating temporary database: %w", err)
	}

	if err := writeDatabase(ctx, tmpPath, res, groups); err != nil {
		_ = os.Remove(tmpPath)

		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("replacing %q: %w", path, err)
	}

	return nil
}

// writeDatabase creates the schema in the empty database at path and fills it in one transaction.
func writeDatabase(ctx context.Context, path string, res *scan.Result, groups []dupes.Group) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if res != nil {
		if err := writeScan(ctx, tx, res); err != nil {
			return err
		}
	}

	if err := writeGroups(ctx, tx, groups); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing export: %w", err)
	}

	return nil
}

func writeScan(ctx context.Context, tx *sql.Tx, res *scan.Result) error {
	dirStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO directories (path, total_size, file_count, dir_count, error) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}
	defer dirStmt.Close()

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (path, directory, size, modified_at, extension) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing files: %w", err)
	}
	defer fileStmt.Close()

	for _, d := range append([]*scan.DirectoryNode{res.Root}, res.Dirs...) {
		var dirErr sql.NullString
		if d.Err != "" {
			dirErr = sql.NullString{String: d.Err, Valid: true}
		}

		if _, err := dirStmt.ExecContext(ctx, d.Path, d.TotalSize, d.FileCount, d.DirCount, dirErr); err != nil {
			return fmt.Errorf("inserting directory %q: %w", d.Path, err)
		}

		for _, f := range d.Files {
			if _, err := fileStmt.ExecContext(ctx, f.Path, d.Path, f.Size, f.ModTime.Unix(), f.Extension); err != nil {
				return fmt.Errorf("inserting file %q: %w", f.Path, err)
			}
		}
	}

	for i, msg := range res.Errors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO errors (seq, message) VALUES (?, ?)`, i, msg); err != nil {
			return fmt.Errorf("inserting error: %w", err)
		}
	}

	return nil
}

func writeGroups(ctx context.Context, tx *sql.Tx, groups []dupes.Group) error {
	for i, g := range groups {
		id := i + 1

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO duplicate_groups (id, signature, size, file_count, wasted) VALUES (?, ?, ?, ?, ?)`,
			id, g.Signature, g.Size, g.Count(), g.Wasted); err != nil {
			return fmt.Errorf("inserting duplicate group: %w", err)
		}

		for _, f := range g.Files {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO duplicate_members (group_id, path) VALUES (?, ?)`, id, f.Path); err != nil {
				return fmt.Errorf("inserting duplicate member: %w", err)
			}
		}
	}

	return nil
}
