package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/idelchi/diskscan/internal/analysis"
	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/scan"
	"github.com/idelchi/diskscan/internal/size"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2

	// Limits of the JSON report.
	jsonTop       = 50
	jsonTreeDepth = 5
	jsonErrors    = 100

	// tableErrors is the number of errors printed without --show-errors.
	tableErrors = 10
	// treeMinPercent hides tree entries below this share of the total.
	treeMinPercent = 1.0
)

// Report is the full result of a scan, as rendered by PrintTable and PrintJSON.
type Report struct {
	GeneratedAt      time.Time           `json:"generated_at"`
	Summary          analysis.Summary    `json:"summary"`
	Elapsed          float64             `json:"elapsed_seconds"`
	Interrupted      bool                `json:"interrupted"`
	TopDirectories   []analysis.FileStat `json:"top_directories"`
	TopFiles         []analysis.FileStat `json:"top_files"`
	ExtensionStats   []analysis.ExtStat  `json:"extension_stats"`
	SizeDistribution []analysis.Bucket   `json:"size_distribution"`
	DirectoryTree    *analysis.TreeNode  `json:"directory_tree"`
	Duplicates       *Duplicates         `json:"duplicates,omitempty"`
	Errors           []string            `json:"errors"`

	top int
}

// Duplicates is the duplicate detection part of a report.
type Duplicates struct {
	Root            string        `json:"root,omitempty"`
	FilesChecked    int           `json:"files_checked"`
	Groups          []dupes.Group `json:"groups"`
	TotalWasted     int64         `json:"total_wasted"`
	FormattedWasted string        `json:"formatted_wasted"`
	Failures        []string      `json:"failures"`
	Errors          []string      `json:"errors,omitempty"`
	Elapsed         float64       `json:"elapsed_seconds"`
	Interrupted     bool          `json:"interrupted"`
}

// layout controls how much of a result ends up in a report.
type layout struct {
	top       int
	treeDepth int
	errors    int // -1 keeps every error
}

// layoutFor returns the report limits for the selected output format.
func layoutFor(options Options) layout {
	l := layout{top: options.Top, treeDepth: options.TreeDepth, errors: tableErrors}

	if options.Output == "json" {
		l = layout{top: max(options.Top, jsonTop), treeDepth: max(options.TreeDepth, jsonTreeDepth), errors: jsonErrors}
	}

	if options.ShowErrors {
		l.errors = -1
	}

	return l
}

// newReport derives a report from a scan result and optional duplicate groups.
func newReport(res *scan.Result, found *Duplicates, l layout) *Report {
	return &Report{
		GeneratedAt:      time.Now(),
		Summary:          analysis.GetSummary(res),
		Elapsed:          res.Elapsed.Seconds(),
		TopDirectories:   analysis.TopDirectories(res, l.top),
		TopFiles:         analysis.TopFiles(res, l.top),
		ExtensionStats:   analysis.ExtensionStats(res),
		SizeDistribution: analysis.SizeDistribution(res),
		DirectoryTree:    analysis.Tree(res, l.treeDepth),
		Duplicates:       found,
		Errors:           firstN(res.Errors, l.errors),
		top:              l.top,
	}
}

// newDuplicates converts a detection result. found may be nil after an interruption.
func newDuplicates(found *dupes.Result, checked int) *Duplicates {
	d := &Duplicates{
		FilesChecked: checked,
		Groups:       []dupes.Group{},
		Failures:     []string{},
	}

	if found == nil {
		d.FormattedWasted = size.Format(0)

		return d
	}

	d.Groups = found.Groups
	d.TotalWasted = found.TotalWasted()
	d.FormattedWasted = size.Format(d.TotalWasted)

	for _, f := range found.Failures {
		d.Failures = append(d.Failures, f.Error())
	}

	return d
}

func firstN(s []string, n int) []string {
	if n < 0 || len(s) <= n {
		return s
	}

	return s[:n]
}

// PrintJSON outputs v as indented JSON.
func PrintJSON(v any, writer io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintTable outputs a report in human-readable table format.
//
//nolint:forbidigo // This function prints output to the console.
func PrintTable(report *Report, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)
	total := report.Summary.TotalSize

	fmt.Fprintln(w, "Summary:\t\t")
	fmt.Fprintf(w, "  Path:\t%s\n", report.Summary.RootPath)
	fmt.Fprintf(w, "  Total size:\t%s (%d bytes)\n", report.Summary.FormattedSize, total)
	fmt.Fprintf(w, "  Files:\t%d\n", report.Summary.TotalFiles)
	fmt.Fprintf(w, "  Directories:\t%d\n", report.Summary.TotalDirs)
	fmt.Fprintf(w, "  Errors:\t%d\n", report.Summary.ErrorCount)

	fmt.Fprintln(w, "\nTop directories:\t\t")

	for i, d := range report.TopDirectories {
		fmt.Fprintf(w, "  %d) '%s'\t%s (%.1f%%)\t%d files\n",
			i+1, d.Path, d.FormattedSize, percent(d.Size, total), d.FileCount)
	}

	fmt.Fprintln(w, "\nTop files:\t\t")

	for i, f := range report.TopFiles {
		fmt.Fprintf(w, "  %d) '%s'\t%s (%.1f%%)\t\n", i+1, f.Path, f.FormattedSize, percent(f.Size, total))
	}

	fmt.Fprintln(w, "\nTop extensions:\t\t")

	for i, e := range firstExt(report.ExtensionStats, report.top) {
		fmt.Fprintf(w, "  %d) %s:\t%d files, %s (%.1f%%)\t\n",
			i+1, e.Extension, e.Count, e.FormattedSize, percent(e.Size, total))
	}

	fmt.Fprintln(w, "\nSize distribution:\t\t")

	for _, b := range report.SizeDistribution {
		fmt.Fprintf(w, "  %s:\t%d files, %s\t\n", b.Label, b.Count, size.Format(b.Size))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(writer, "\nDirectory tree:")
	printTree(writer, report.DirectoryTree, total, "", true, true)

	if len(report.Errors) > 0 {
		fmt.Fprintf(writer, "\nErrors (%d of %d):\n", len(report.Errors), report.Summary.ErrorCount)

		for _, e := range report.Errors {
			fmt.Fprintf(writer, "  %s\n", e)
		}
	}

	if report.Duplicates != nil {
		if err := PrintDuplicates(report.Duplicates, writer, report.top); err != nil {
			return err
		}
	}

	fmt.Fprintf(writer, "\nElapsed: %v\n", time.Duration(report.Elapsed*float64(time.Second)).Round(time.Millisecond))

	return nil
}

// PrintDuplicates outputs the top duplicate groups in human-readable format.
//
//nolint:forbidigo // This function prints output to the console.
func PrintDuplicates(d *Duplicates, writer io.Writer, top int) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintf(w, "\nDuplicates:\t%d groups, %s wasted (%d files checked)\n",
		len(d.Groups), d.FormattedWasted, d.FilesChecked)

	for i, g := range d.Groups {
		if i == top {
			fmt.Fprintf(w, "  ... %d more groups\t\n", len(d.Groups)-top)

			break
		}

		fmt.Fprintf(w, "  %d) %d x %s\twasted %s\t%s\n",
			i+1, g.Count(), size.Format(g.Size), size.Format(g.Wasted), shortSignature(g.Signature))

		for _, f := range g.Files {
			fmt.Fprintf(w, "       '%s'\t\t\n", f.Path)
		}
	}

	if len(d.Failures) > 0 {
		fmt.Fprintf(w, "\nUnreadable files:\t%d\t\n", len(d.Failures))

		for _, f := range d.Failures {
			fmt.Fprintf(w, "  %s\t\t\n", f)
		}
	}

	if len(d.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\t%d\t\n", len(d.Errors))

		for _, e := range d.Errors {
			fmt.Fprintf(w, "  %s\t\t\n", e)
		}
	}

	return w.Flush()
}

// printTree draws node and the children that hold at least treeMinPercent of total.
func printTree(w io.Writer, node *analysis.TreeNode, total int64, prefix string, last, root bool) {
	branch, indent := "├── ", "│   "
	if last {
		branch, indent = "└── ", "    "
	}

	name := node.Name
	if node.Error != "" {
		name += " [error]"
	}

	if root {
		fmt.Fprintf(w, "%s (%s)\n", node.Path, node.FormattedSize)

		indent = ""
	} else {
		fmt.Fprintf(w, "%s%s%s (%s, %.1f%%)\n", prefix, branch, name, node.FormattedSize, percent(node.Size, total))
	}

	visible := make([]*analysis.TreeNode, 0, len(node.Children))

	for _, child := range node.Children {
		if percent(child.Size, total) >= treeMinPercent {
			visible = append(visible, child)
		}
	}

	for i, child := range visible {
		printTree(w, child, total, prefix+indent, i == len(visible)-1, false)
	}
}

func firstExt(s []analysis.ExtStat, n int) []analysis.ExtStat {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

func percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}

	return 100.0 * float64(part) / float64(total)
}

func shortSignature(sig string) string {
	const n = 12

	if len(sig) <= n {
		return sig
	}

	return sig[:n]
}
