// Package dupes finds files with identical content.
//
// Candidates are narrowed in three stages so that most files are never read in
// full: files are first grouped by size, then by a hash of their leading bytes,
// and only the survivors are hashed completely.
package dupes

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/idelchi/diskscan/internal/hashing"
	"github.com/idelchi/diskscan/internal/logger"
	"github.com/idelchi/diskscan/internal/scan"
)

// DefaultPartialBytes is the default prefix length hashed in the partial stage.
const DefaultPartialBytes = 64 * 1024

// ErrInterrupted is returned when detection is cancelled.
var ErrInterrupted = errors.New("duplicate detection interrupted")

// Stage names a detection stage.
type Stage string

// Detection stages, in order.
const (
	StageSize    Stage = "size"
	StagePartial Stage = "partial"
	StageFull    Stage = "full"
)

// Observer receives stage progress. Calls are serialized by Find.
type Observer interface {
	StageProgress(processed, total int, stage Stage)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(processed, total int, stage Stage)

// StageProgress calls f.
func (f ObserverFunc) StageProgress(processed, total int, stage Stage) {
	f(processed, total, stage)
}

// Options configures duplicate detection.
type Options struct {
	// MinSize is the minimum file size considered.
	MinSize int64
	// PartialBytes is the prefix length hashed in the partial stage (0 = DefaultPartialBytes).
	PartialBytes int64
	// Hasher computes content hashes (nil = SHA-256).
	Hasher *hashing.Hasher
	// Workers bounds concurrent hashing (0 = number of CPUs).
	Workers int
	// Observer, if set, receives stage progress.
	Observer Observer
	// Log receives debug output.
	Log logger.Logger
}

// Group is a set of files sharing identical content.
type Group struct {
	// Signature is the full content hash.
	Signature string `json:"signature"`
	// Size is the common file size.
	Size int64 `json:"size"`
	// Files holds the members, sorted by path.
	Files []*scan.FileEntry `json:"files"`
	// Wasted is the space freed by keeping a single copy: Size * (len(Files) - 1).
	Wasted int64 `json:"wasted"`
}

// Count returns the number of files in the group.
func (g Group) Count() int {
	return len(g.Files)
}

// Result holds the outcome of Find.
type Result struct {
	// Groups are sorted by descending wasted space.
	Groups []Group `json:"groups"`
	// Failures lists the files dropped because they could not be hashed.
	Failures []*hashing.Error `json:"-"`
}

// TotalWasted sums the wasted space of all groups.
func (r *Result) TotalWasted() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.Wasted
	}

	return total
}

// candidates is a set of files that may still share content.
type candidates struct {
	size  int64
	sum   string
	files []*scan.FileEntry
}

type detector struct {
	opts Options
	mu   sync.Mutex
}

// Find groups files by identical content.
//
// A file that cannot be hashed is dropped at that stage and reported in
// Result.Failures. On cancellation the groups found so far are discarded and an
// error wrapping ErrInterrupted is returned.
func Find(ctx context.Context, files []*scan.FileEntry, opts Options) (*Result, error) {
	if opts.PartialBytes <= 0 {
		opts.PartialBytes = DefaultPartialBytes
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	if opts.Hasher == nil {
		h, err := hashing.New(hashing.SHA256)
		if err != nil {
			return nil, err
		}

		opts.Hasher = h
	}

	d := &detector{opts: opts}
	res := &Result{Groups: []Group{}}

	bySize := d.groupBySize(files)

	partial, err := d.refine(ctx, bySize, StagePartial, res, func(ctx context.Context, f *scan.FileEntry) (string, error) {
		return opts.Hasher.Partial(ctx, f.Path, opts.PartialBytes)
	})
	if err != nil {
		return nil, err
	}

	// A prefix covering the whole file already is the full hash.
	var complete, pending []candidates

	for _, c := range partial {
		if c.size <= opts.PartialBytes {
			complete = append(complete, c)
		} else {
			pending = append(pending, c)
		}
	}

	full, err := d.refine(ctx, pending, StageFull, res, func(ctx context.Context, f *scan.FileEntry) (string, error) {
		return opts.Hasher.Full(ctx, f.Path)
	})
	if err != nil {
		return nil, err
	}

	for _, c := range append(complete, full...) {
		members := slices.Clone(c.files)
		slices.SortFunc(members, func(a, b *scan.FileEntry) int { return cmp.Compare(a.Path, b.Path) })

		res.Groups = append(res.Groups, Group{
			Signature: c.sum,
			Size:      c.size,
			Files:     members,
			Wasted:    c.size * int64(len(members)-1),
		})
	}

	slices.SortFunc(res.Groups, func(a, b Group) int {
		return cmp.Or(
			cmp.Compare(b.Wasted, a.Wasted),
			cmp.Compare(b.Size, a.Size),
			cmp.Compare(a.Signature, b.Signature),
		)
	})

	opts.Log.Printf("duplicates: %d groups, %d bytes wasted, %d files failed to hash",
		len(res.Groups), res.TotalWasted(), len(res.Failures))

	return res, nil
}

// groupBySize partitions the files of at least MinSize by exact size and drops
// unique sizes. Sets are ordered by descending size.
func (d *detector) groupBySize(files []*scan.FileEntry) []candidates {
	d.progress(0, len(files), StageSize)

	index := make(map[int64]int)

	var sets []candidates

	for _, f := range files {
		if f.Size < d.opts.MinSize {
			continue
		}

		i, ok := index[f.Size]
		if !ok {
			i = len(sets)
			index[f.Size] = i
			sets = append(sets, candidates{size: f.Size})
		}

		sets[i].files = append(sets[i].files, f)
	}

	sets = slices.DeleteFunc(sets, func(c candidates) bool { return len(c.files) < 2 })
	slices.SortStableFunc(sets, func(a, b candidates) int { return cmp.Compare(b.size, a.size) })

	d.progress(len(files), len(files), StageSize)
	d.opts.Log.Printf("size stage: %d files, %d size groups", len(files), len(sets))

	return sets
}

// refine hashes every file of every set with hashFn and splits each set by hash,
// keeping only subsets with at least two members. Hash failures are recorded in res.
func (d *detector) refine(
	ctx context.Context,
	sets []candidates,
	stage Stage,
	res *Result,
	hashFn func(context.Context, *scan.FileEntry) (string, error),
) ([]candidates, error) {
	var files []*scan.FileEntry
	for _, c := range sets {
		files = append(files, c.files...)
	}

	sums := make([]string, len(files))
	errs := make([]error, len(files))
	processed := 0

	d.progress(0, len(files), stage)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			sums[i], errs[i] = hashFn(gctx, f)

			d.mu.Lock()
			processed++
			d.notify(processed, len(files), stage)
			d.mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s stage: %w", ErrInterrupted, stage, err)
	}

	var out []candidates

	// files holds each set's members contiguously, in set order.
	k := 0

	for _, c := range sets {
		index := make(map[string]int)

		var split []candidates

		for _, f := range c.files {
			sum, err := sums[k], errs[k]
			k++

			if err != nil {
				d.fail(res, err)

				continue
			}

			n, ok := index[sum]
			if !ok {
				n = len(split)
				index[sum] = n
				split = append(split, candidates{size: c.size, sum: sum})
			}

			split[n].files = append(split[n].files, f)
		}

		for _, s := range split {
			if len(s.files) >= 2 {
				out = append(out, s)
			}
		}
	}

	d.opts.Log.Printf("%s stage: %d files hashed, %d candidate groups", stage, len(files), len(out))

	return out, nil
}

// fail records a file that could not be hashed.
func (d *detector) fail(res *Result, err error) {
	var hashErr *hashing.Error
	if !errors.As(err, &hashErr) {
		hashErr = &hashing.Error{Op: "hash", Err: err}
	}

	d.opts.Log.Printf("dropping file: %v", hashErr)
	res.Failures = append(res.Failures, hashErr)
}

func (d *detector) progress(processed, total int, stage Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.notify(processed, total, stage)
}

// notify must be called with d.mu held.
func (d *detector) notify(processed, total int, stage Stage) {
	if d.opts.Observer != nil {
		d.opts.Observer.StageProgress(processed, total, stage)
	}
}
