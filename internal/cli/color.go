package cli

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// useColor reports whether output to w should be colorized under mode.
// In auto mode only terminals get color, and NO_COLOR disables it.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// diffPrinter writes unified diffs, coloring hunk headers and changed lines.
type diffPrinter struct {
	header  *color.Color
	hunk    *color.Color
	added   *color.Color
	removed *color.Color
}

func newDiffPrinter(enabled bool) *diffPrinter {
	p := &diffPrinter{
		header:  color.New(color.Bold),
		hunk:    color.New(color.FgCyan),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.header, p.hunk, p.added, p.removed} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print writes diff to w line by line.
func (p *diffPrinter) Print(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		var c *color.Color
		switch {
		case strings.HasPrefix(text, "--- "), strings.HasPrefix(text, "+++ "):
			c = p.header
		case strings.HasPrefix(text, "@@"):
			c = p.hunk
		case strings.HasPrefix(text, "+"):
			c = p.added
		case strings.HasPrefix(text, "-"):
			c = p.removed
		}
		if c == nil {
			io.WriteString(w, text+"\n")
			continue
		}
		c.Fprintln(w, text)
	}
}
