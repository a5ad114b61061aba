package runner

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffContext is the number of unchanged lines shown around each change.
const DiffContext = 3

const noNewlineMarker = "\\ No newline at end of file\n"

// LineKind is the unified diff prefix of a line.
type LineKind byte

const (
	LineContext LineKind = ' '
	LineAdded   LineKind = '+'
	LineRemoved LineKind = '-'
)

// DiffLine is one line of a hunk, without its trailing newline.
// NoNewline marks the last line of a document that does not end in "\n".
type DiffLine struct {
	Kind      LineKind
	Text      string
	NoNewline bool
}

// Hunk is a run of changes with surrounding context. Line numbers are
// 1-based, following unified diff conventions.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Lines              []DiffLine
}

// Header returns the "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

type lineOp struct {
	DiffLine
	oldPos int // old lines consumed before this one
	newPos int
}

// Hunks computes the line-level changes between before and after.
func Hunks(before, after string, context int) []Hunk {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	return groupHunks(lineOps(diffs), context)
}

func lineOps(diffs []diffmatchpatch.Diff) []lineOp {
	var (
		ops            []lineOp
		oldPos, newPos int
	)
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			op := lineOp{oldPos: oldPos, newPos: newPos}
			text, ok := strings.CutSuffix(line, "\n")
			op.Text = text
			op.NoNewline = !ok
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				op.Kind = LineContext
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				op.Kind = LineRemoved
				oldPos++
			case diffmatchpatch.DiffInsert:
				op.Kind = LineAdded
				newPos++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// groupHunks merges changes separated by at most 2*context unchanged lines.
func groupHunks(ops []lineOp, context int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].Kind == LineContext {
			i++
			continue
		}

		start := max(0, i-context)
		last := i
		for j := i + 1; j < len(ops); j++ {
			if ops[j].Kind != LineContext {
				last = j
			} else if j-last > 2*context {
				break
			}
		}
		end := min(len(ops), last+context+1)

		hunks = append(hunks, newHunk(ops[start:end]))
		i = end
	}
	return hunks
}

func newHunk(ops []lineOp) Hunk {
	h := Hunk{
		OldStart: ops[0].oldPos + 1,
		NewStart: ops[0].newPos + 1,
		Lines:    make([]DiffLine, 0, len(ops)),
	}
	for _, op := range ops {
		if op.Kind != LineAdded {
			h.OldLines++
		}
		if op.Kind != LineRemoved {
			h.NewLines++
		}
		h.Lines = append(h.Lines, op.DiffLine)
	}
	// An empty side points at the line before the change.
	if h.OldLines == 0 {
		h.OldStart--
	}
	if h.NewLines == 0 {
		h.NewStart--
	}
	return h
}

// UnifiedDiff renders the change from before to after as a unified diff of
// locator. It returns "" when the documents are identical.
func UnifiedDiff(locator, before, after string) string {
	hunks := Hunks(before, after, DiffContext)
	if len(hunks) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n", locator)
	fmt.Fprintf(&sb, "+++ b/%s\n", locator)
	for _, h := range hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteByte(byte(l.Kind))
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
			if l.NoNewline {
				sb.WriteString(noNewlineMarker)
			}
		}
	}
	return sb.String()
}
