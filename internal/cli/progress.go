package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/idelchi/diskscan/internal/dupes"
	"github.com/idelchi/diskscan/internal/scan"
)

const (
	// progressInterval is the refresh rate of the status line.
	progressInterval = 100 * time.Millisecond
	// pathWidth is the number of trailing path characters shown while scanning.
	pathWidth = 50
)

// progressEnabled reports whether a status line should be drawn on stderr.
func progressEnabled(options Options) bool {
	fd := os.Stderr.Fd()

	return options.Output != "json" &&
		!options.Debug &&
		(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

var (
	_ scan.Observer  = (*progress)(nil)
	_ dupes.Observer = (*progress)(nil)
)

// progress receives observer callbacks from the walker and the duplicate
// detector and redraws a single status line at a fixed rate.
type progress struct {
	w io.Writer

	files atomic.Int64
	dirs  atomic.Int64
	path  atomic.Pointer[string]

	hashing   atomic.Bool
	processed atomic.Int64
	total     atomic.Int64
	stage     atomic.Pointer[dupes.Stage]

	done chan struct{}
	wg   sync.WaitGroup
}

// DirectoryScanned implements scan.Observer.
func (p *progress) DirectoryScanned(path string, files, dirs int64) {
	p.files.Store(files)
	p.dirs.Store(dirs)
	p.path.Store(&path)
}

// StageProgress implements dupes.Observer.
func (p *progress) StageProgress(processed, total int, stage dupes.Stage) {
	p.hashing.Store(true)
	p.processed.Store(int64(processed))
	p.total.Store(int64(total))
	p.stage.Store(&stage)
}

// startProgress starts redrawing the status line on w until the returned
// function is called. The returned function clears the line.
func startProgress(w io.Writer) (*progress, func()) {
	p := &progress{w: w, done: make(chan struct{})}

	// Hide cursor for in-place updates; restore on stop.
	fmt.Fprint(w, "\033[?25l")

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				fmt.Fprintf(p.w, "\r\033[2K%s\r", p.line())
			}
		}
	}()

	var once sync.Once

	return p, func() {
		once.Do(func() {
			close(p.done)
			p.wg.Wait()
			fmt.Fprint(w, "\r\033[2K\r\033[?25h")
		})
	}
}

func (p *progress) line() string {
	if p.hashing.Load() {
		stage := dupes.StageSize
		if s := p.stage.Load(); s != nil {
			stage = *s
		}

		return fmt.Sprintf("Finding duplicates… %s stage %d/%d", stage, p.processed.Load(), p.total.Load())
	}

	msg := fmt.Sprintf("Scanning… %d files, %d dirs", p.files.Load(), p.dirs.Load())

	if path := p.path.Load(); path != nil {
		msg += " | " + tail(*path, pathWidth)
	}

	return msg
}

// tail shortens s to its last n characters, marking the cut with an ellipsis.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return "…" + strings.TrimSpace(string(r[len(r)-n+1:]))
}
