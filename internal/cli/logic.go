package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/export"
	"github.com/idelchi/diskscan/internal/scan"
)

// ErrPartial is returned after partial results of an interrupted run were written.
var ErrPartial = errors.New("interrupted, results are partial")

// observers starts the progress line when enabled and returns the observers
// to install together with the function that stops it.
func observers(options Options) (scan.Observer, dupes.Observer, func()) {
	if !progressEnabled(options) {
		return nil, nil, func() {}
	}

	p, stop := startProgress(os.Stderr)

	return p, p, stop
}

// runScan scans options.Path, optionally detects duplicates among the scanned
// files, and writes the report to out.
func runScan(ctx context.Context, options Options, s settings, out io.Writer) error {
	cfg := options.scanConfig(s)
	dopts := options.dupesOptions(s)

	var stop func()

	cfg.Observer, dopts.Observer, stop = observers(options)
	defer stop()

	res, err := scan.Scan(ctx, options.Path, cfg)

	interrupted := errors.Is(err, scan.ErrInterrupted)
	if err != nil && !interrupted {
		return err
	}

	var found *Duplicates

	if options.Dupes && !interrupted {
		groups, err := dupes.Find(ctx, res.Files, dopts)

		interrupted = errors.Is(err, dupes.ErrInterrupted)
		if err != nil && !interrupted {
			return err
		}

		found = newDuplicates(groups, len(res.Files))
		found.Interrupted = interrupted
	}

	stop()

	report := newReport(res, found, layoutFor(options))
	report.Interrupted = interrupted

	if err := write(options, out, report, func() error { return PrintTable(report, out) }); err != nil {
		return err
	}

	if options.SQLite != "" && !interrupted {
		var groups []dupes.Group
		if found != nil {
			groups = found.Groups
		}

		if err := export.WriteSQLite(ctx, options.SQLite, res, groups); err != nil {
			return fmt.Errorf("exporting to %q: %w", options.SQLite, err)
		}

		s.log.Printf("exported to %s", options.SQLite)
	}

	if interrupted {
		return ErrPartial
	}

	return nil
}

// runDupes collects the files below options.Path and reports the duplicates among them.
func runDupes(ctx context.Context, options Options, s settings, out io.Writer) error {
	cfg := options.scanConfig(s)
	dopts := options.dupesOptions(s)

	var stop func()

	// Inventory reports no progress; only the hashing stages are shown.
	_, dopts.Observer, stop = observers(options)
	defer stop()

	inv, err := scan.Inventory(ctx, options.Path, cfg)

	interrupted := errors.Is(err, scan.ErrInterrupted)
	if err != nil && !interrupted {
		return err
	}

	var groups *dupes.Result

	if !interrupted {
		groups, err = dupes.Find(ctx, inv.Files, dopts)

		interrupted = errors.Is(err, dupes.ErrInterrupted)
		if err != nil && !interrupted {
			return err
		}
	}

	stop()

	found := newDuplicates(groups, len(inv.Files))
	found.Root = inv.Root
	found.Errors = firstN(inv.Errors, layoutFor(options).errors)
	found.Elapsed = inv.Elapsed.Seconds()
	found.Interrupted = interrupted

	if err := write(options, out, found, func() error { return PrintDuplicates(found, out, options.Top) }); err != nil {
		return err
	}

	if options.SQLite != "" && !interrupted {
		if err := export.WriteSQLite(ctx, options.SQLite, nil, found.Groups); err != nil {
			return fmt.Errorf("exporting to %q: %w", options.SQLite, err)
		}

		s.log.Printf("exported to %s", options.SQLite)
	}

	if interrupted {
		return ErrPartial
	}

	return nil
}

// write renders v as JSON or calls table for the table format.
func write(options Options, out io.Writer, v any, table func() error) error {
	switch options.Output {
	case "json":
		return PrintJSON(v, out)
	case "table":
		return table()
	default:
		return fmt.Errorf("unknown output format: %s", options.Output)
	}
}
