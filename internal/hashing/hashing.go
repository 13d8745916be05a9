// Package hashing computes the partial and full content hashes used to compare files.
package hashing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm names a content hash.
type Algorithm string

const (
	// SHA256 is the cryptographic default.
	SHA256 Algorithm = "sha256"
	// XXHash is a fast non-cryptographic 64-bit hash.
	XXHash Algorithm = "xxhash"
)

// Algorithms lists the supported algorithms.
//
//nolint:gochecknoglobals // Config constant
var Algorithms = []Algorithm{SHA256, XXHash}

// ErrUnknownAlgorithm is returned by New for unsupported algorithms.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Operations reported in Error.Op.
const (
	OpPartial = "partial hash"
	OpFull    = "full hash"
)

const bufferSize = 128 * 1024

// Error describes a file that could not be hashed.
type Error struct {
	// Op is OpPartial or OpFull.
	Op string
	// Path is the file being hashed.
	Path string
	// Err is the underlying failure.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hasher hashes file contents with a single algorithm. It is safe for concurrent use.
type Hasher struct {
	alg     Algorithm
	newHash func() hash.Hash
}

// New returns a Hasher for alg.
func New(alg Algorithm) (*Hasher, error) {
	switch Algorithm(strings.ToLower(string(alg))) {
	case SHA256:
		return &Hasher{alg: SHA256, newHash: sha256.New}, nil
	case XXHash:
		return &Hasher{alg: XXHash, newHash: func() hash.Hash { return xxhash.New() }}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

// Algorithm returns the algorithm in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// Partial hashes at most prefix leading bytes of the file at path.
// For files no longer than prefix the result equals Full.
func (h *Hasher) Partial(ctx context.Context, path string, prefix int64) (string, error) {
	sum, err := h.sum(ctx, path, prefix)
	if err != nil {
		return "", &Error{Op: OpPartial, Path: path, Err: err}
	}

	return sum, nil
}

// Full hashes the entire content of the file at path.
func (h *Hasher) Full(ctx context.Context, path string) (string, error) {
	sum, err := h.sum(ctx, path, -1)
	if err != nil {
		return "", &Error{Op: OpFull, Path: path, Err: err}
	}

	return sum, nil
}

// sum hashes up to limit bytes, or the whole file when limit is negative.
func (h *Hasher) sum(ctx context.Context, path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = &ctxReader{ctx: ctx, r: f}
	if limit >= 0 {
		r = io.LimitReader(r, limit)
	}

	digest := h.newHash()
	if _, err := io.CopyBuffer(digest, r, make([]byte, bufferSize)); err != nil {
		return "", err
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context //nolint:containedctx // Scoped to a single read loop
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
