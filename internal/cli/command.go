package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/hashing"
	"github.com/idelchi/diskscan/internal/logger"
	"github.com/idelchi/diskscan/internal/scan"
	"github.com/idelchi/diskscan/internal/size"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// Options holds every command-line option.
type Options struct {
	// Path is the directory to analyze.
	Path string
	// Depth is the maximum listing depth (-1 = unlimited).
	Depth int
	// Top is the number of entries shown per ranking.
	Top int
	// MinSize is the minimum file size to record, e.g. "10MB".
	MinSize string
	// Excludes are extra exclusion patterns.
	Excludes []string
	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool
	// ShowErrors prints every scan error.
	ShowErrors bool
	// Output is the output format (table or json).
	Output string
	// TreeDepth is the depth of the printed directory tree.
	TreeDepth int
	// Dupes enables duplicate detection after the scan.
	Dupes bool
	// DupesMinSize is the minimum size of files considered for duplicates.
	DupesMinSize string
	// Hash is the content hash algorithm.
	Hash string
	// PartialBytes is the prefix length hashed before full hashing.
	PartialBytes string
	// Workers bounds concurrency (0 = number of CPUs).
	Workers int
	// SQLite is an optional database file to export results to.
	SQLite string
	// Debug enables debug output.
	Debug bool
}

var allowedOutputs = []string{"table", "json"} //nolint:gochecknoglobals // Config constant

// settings are the parsed forms of the size and hash options.
type settings struct {
	minSize      int64
	dupesMinSize int64
	partialBytes int64
	hasher       *hashing.Hasher
	log          logger.Logger
}

// validate checks the options and parses the size and hash values.
func (o Options) validate() (settings, error) {
	var s settings

	if !slices.Contains(allowedOutputs, o.Output) {
		return s, fmt.Errorf("invalid output format %q: must be one of %v", o.Output, allowedOutputs)
	}

	if o.Depth < scan.NoDepthLimit {
		return s, errors.New("depth cannot be below -1")
	}

	if o.Top <= 0 {
		return s, errors.New("top must be positive")
	}

	if o.Workers < 0 {
		return s, errors.New("workers cannot be negative")
	}

	var err error

	if s.minSize, err = size.Parse(o.MinSize); err != nil {
		return s, fmt.Errorf("invalid min-size: %w", err)
	}

	if s.dupesMinSize, err = size.Parse(o.DupesMinSize); err != nil {
		return s, fmt.Errorf("invalid dupes-min-size: %w", err)
	}

	if s.partialBytes, err = size.Parse(o.PartialBytes); err != nil {
		return s, fmt.Errorf("invalid partial-bytes: %w", err)
	}

	if s.partialBytes <= 0 {
		return s, errors.New("partial-bytes must be positive")
	}

	if s.hasher, err = hashing.New(hashing.Algorithm(o.Hash)); err != nil {
		return s, err
	}

	s.log = logger.New(o.Debug, os.Stderr)

	return s, nil
}

// scanConfig builds the walker configuration.
func (o Options) scanConfig(s settings) scan.Config {
	return scan.Config{
		Excludes:       o.Excludes,
		MinSize:        s.minSize,
		MaxDepth:       o.Depth,
		FollowSymlinks: o.FollowSymlinks,
		Workers:        o.Workers,
		Log:            s.log,
	}
}

// dupesOptions builds the duplicate detector options.
func (o Options) dupesOptions(s settings) dupes.Options {
	return dupes.Options{
		MinSize:      s.dupesMinSize,
		PartialBytes: s.partialBytes,
		Hasher:       s.hasher,
		Workers:      o.Workers,
		Log:          s.log,
	}
}

// Execute runs the CLI with the process arguments.
func (c CLI) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.command().ExecuteContext(ctx)
}

func (c CLI) command() *cobra.Command {
	var options Options

	root := &cobra.Command{
		Use:   "diskscan [flags] [path]",
		Short: "Analyze disk usage and find duplicate files",
		Long: heredoc.Doc(`
			diskscan recursively measures the space used by a directory tree.

			It reports the largest directories and files, a breakdown by extension
			and size range, and a size-sorted directory tree. Errors such as
			unreadable directories are collected and reported, never fatal.

			With --dupes, files with identical content are grouped. Candidates are
			narrowed by size, then by a hash of their first bytes, and only then
			hashed in full.

			Sizes accept binary units: 512KB, 10MB, 1.5GB, or a plain byte count.
		`),
		Example: heredoc.Doc(`
			diskscan ~                          # analyze the home directory
			diskscan / --depth 3                # list contents at most 3 levels deep
			diskscan ~/Downloads --min-size 10MB
			diskscan . --exclude node_modules,.git
			diskscan . --dupes --dupes-min-size 1MB -o json
			diskscan dupes ~/Pictures --hash xxhash
			diskscan . --sqlite report.db       # export for SQL queries
		`),
		Version:       c.version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = pathArg(args)

			s, err := options.validate()
			if err != nil {
				return err
			}

			return runScan(cmd.Context(), options, s, cmd.OutOrStdout())
		},
	}

	dupesCmd := &cobra.Command{
		Use:   "dupes [flags] [path]",
		Short: "Find duplicate files without building the directory tree",
		Long: heredoc.Doc(`
			Collect the files below path with a parallel walk and group those with
			identical content. The same exclusion, depth and symlink rules apply as
			for a full scan.
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = pathArg(args)

			s, err := options.validate()
			if err != nil {
				return err
			}

			return runDupes(cmd.Context(), options, s, cmd.OutOrStdout())
		},
	}

	sharedFlags(root.PersistentFlags(), &options)

	flags := root.Flags()
	flags.SortFlags = false
	flags.IntVar(&options.TreeDepth, "tree-depth", 2, "Depth of the printed directory tree")
	flags.BoolVar(&options.Dupes, "dupes", false, "Also detect duplicate files")

	root.AddCommand(dupesCmd)

	return root
}

// sharedFlags registers the flags common to the scan and dupes commands.
func sharedFlags(flags *pflag.FlagSet, options *Options) {
	flags.SortFlags = false
	flags.IntVarP(&options.Depth, "depth", "d", scan.NoDepthLimit, "Maximum depth whose contents are listed (-1=unlimited)")
	flags.IntVarP(&options.Top, "top", "n", 15, "Number of entries per ranking")
	flags.StringVarP(&options.MinSize, "min-size", "m", "0", "Minimum file size to record (e.g., 1KB, 10MB)")
	flags.StringSliceVarP(&options.Excludes, "exclude", "e", nil,
		"Names or path fragments to exclude (e.g., node_modules,.git)")
	flags.BoolVar(&options.FollowSymlinks, "follow-symlinks", false, "Follow symbolic links")
	flags.BoolVar(&options.ShowErrors, "show-errors", false, "Print every scan error")
	flags.StringVarP(&options.Output, "output", "o", "table", "Output format: table or json")
	flags.StringVar(&options.DupesMinSize, "dupes-min-size", "1B", "Minimum size of files checked for duplicates")
	flags.StringVar(&options.Hash, "hash", string(hashing.SHA256), "Hash algorithm: "+algorithms())
	flags.StringVar(&options.PartialBytes, "partial-bytes", "64KB", "Leading bytes hashed before a full hash")
	flags.IntVarP(&options.Workers, "workers", "w", 0, "Concurrent directory and hashing workers (0=number of CPUs)")
	flags.StringVar(&options.SQLite, "sqlite", "", "Export results to a SQLite database file")
	flags.BoolVar(&options.Debug, "debug", false, "Enable debug output")
}

func algorithms() string {
	names := make([]string, len(hashing.Algorithms))
	for i, alg := range hashing.Algorithms {
		names[i] = string(alg)
	}

	return strings.Join(names, " or ")
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}

	return args[0]
}
