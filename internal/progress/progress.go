// Package progress shows export progress: a single redrawn status line on
// a terminal, periodic log entries otherwise.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/JonMunkholm/dd2db/internal/core"
	"github.com/JonMunkholm/dd2db/internal/dump"
)

const (
	barWidth     = 20
	defaultWidth = 100
)

// Display collects progress of concurrent runs and renders it.
type Display struct {
	out   io.Writer
	tty   bool
	width int
	log   *slog.Logger

	mu     sync.Mutex
	latest map[dump.Kind]core.Progress
	drawn  bool
}

// New returns a display on f. The bar is used only when f is a terminal.
func New(f *os.File, log *slog.Logger) *Display {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return NewWriter(f, false, 0, log)
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = defaultWidth
	}
	return NewWriter(f, true, width, log)
}

// NewWriter returns a display on an arbitrary writer.
func NewWriter(w io.Writer, tty bool, width int, log *slog.Logger) *Display {
	if width <= 0 {
		width = defaultWidth
	}
	if log == nil {
		log = slog.Default()
	}
	return &Display{out: w, tty: tty, width: width, log: log, latest: map[dump.Kind]core.Progress{}}
}

// Update records p and redraws. It has the core.ProgressCallback shape and
// is safe for concurrent runs.
func (d *Display) Update(p core.Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest[p.Kind] = p
	if !d.tty {
		d.log.Info("export progress",
			"run_id", p.RunID,
			"kind", p.Kind.String(),
			"entities", p.Entities,
			"hint", p.Hint,
			"percent", p.Percent(),
			"rows", p.Rows,
			"rate", rate(p),
		)
		return
	}
	d.draw()
}

// Finish ends the status line so later output starts on a fresh line.
func (d *Display) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tty && d.drawn {
		fmt.Fprintln(d.out)
		d.drawn = false
	}
}

func (d *Display) draw() {
	kinds := make([]dump.Kind, 0, len(d.latest))
	for k := range d.latest {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, Line(d.latest[k], len(kinds) == 1))
	}
	line := strings.Join(parts, " | ")
	if len(line) > d.width-1 {
		line = line[:d.width-1]
	}
	fmt.Fprintf(d.out, "\r%-*s", d.width-1, line)
	d.drawn = true
}

// Line renders one run. The full form carries a bar and counts; the short
// form only the percentage.
func Line(p core.Progress, full bool) string {
	pct := p.Percent()
	if !full {
		return fmt.Sprintf("%s %3d%%", p.Kind.Plural(), pct)
	}

	filled := pct * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	counts := humanize.Comma(p.Entities)
	if p.Hint > 0 {
		counts += "/" + humanize.Comma(p.Hint)
	}
	return fmt.Sprintf("%s [%s] %3d%% %s %s/s %s",
		p.Kind.Plural(), bar, pct, counts, humanize.Comma(int64(rate(p))), p.Elapsed.Round(time.Second))
}

// rate returns entities per second.
func rate(p core.Progress) float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Entities) / p.Elapsed.Seconds()
}
