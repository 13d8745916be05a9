package hashing

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasher_PartialAndFull(t *testing.T) {
	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			h, err := New(alg)
			if err != nil {
				t.Fatalf("New(%q): %v", alg, err)
			}

			dir := t.TempDir()
			a := write(t, dir, "a", "same-prefix|tail-one")
			b := write(t, dir, "b", "same-prefix|tail-two")
			c := write(t, dir, "c", "same-prefix|tail-one")

			ctx := context.Background()

			pa := mustHash(t, func() (string, error) { return h.Partial(ctx, a, 11) })
			pb := mustHash(t, func() (string, error) { return h.Partial(ctx, b, 11) })

			if pa != pb {
				t.Fatal("equal prefixes must give equal partial hashes")
			}

			fa := mustHash(t, func() (string, error) { return h.Full(ctx, a) })
			fb := mustHash(t, func() (string, error) { return h.Full(ctx, b) })
			fc := mustHash(t, func() (string, error) { return h.Full(ctx, c) })

			if fa == fb {
				t.Fatal("different content must give different full hashes")
			}

			if fa != fc {
				t.Fatal("identical content must give identical full hashes")
			}

			if whole := mustHash(t, func() (string, error) { return h.Partial(ctx, a, 1<<20) }); whole != fa {
				t.Fatal("a prefix covering the file must equal the full hash")
			}
		})
	}
}

func TestHasher_KnownDigest(t *testing.T) {
	h, err := New(SHA256)
	if err != nil {
		t.Fatal(err)
	}

	path := write(t, t.TempDir(), "abc", "abc")

	got, err := h.Full(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("sha256(abc) = %s, want %s", got, want)
	}
}

func TestHasher_MissingFile(t *testing.T) {
	h, err := New(XXHash)
	if err != nil {
		t.Fatal(err)
	}

	missing := filepath.Join(t.TempDir(), "gone")

	_, err = h.Partial(context.Background(), missing, 10)

	var hashErr *Error
	if !errors.As(err, &hashErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}

	if hashErr.Op != OpPartial || hashErr.Path != missing || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("unexpected error: %+v", hashErr)
	}
}

func TestHasher_Cancelled(t *testing.T) {
	h, err := New(SHA256)
	if err != nil {
		t.Fatal(err)
	}

	path := write(t, t.TempDir(), "big", strings.Repeat("z", 4096))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Full(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	if _, err := New("md4"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}

	h, err := New("SHA256")
	if err != nil || h.Algorithm() != SHA256 {
		t.Fatalf("algorithm names must be case-insensitive: %v", err)
	}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}

	return path
}

func mustHash(t *testing.T, fn func() (string, error)) string {
	t.Helper()

	sum, err := fn()
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	return sum
}
