package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff_Insert(t *testing.T) {
	got := UnifiedDiff("doc.txt", "a\nb\nc\n", "a\nX\nb\nc\n")

	want := "--- a/doc.txt\n" +
		"+++ b/doc.txt\n" +
		"@@ -1,3 +1,4 @@\n" +
		" a\n" +
		"+X\n" +
		" b\n" +
		" c\n"
	assert.Equal(t, want, got)
}

func TestUnifiedDiff_AddsTrailingNewline(t *testing.T) {
	got := UnifiedDiff("doc.txt", "a", "a\n")

	want := "--- a/doc.txt\n" +
		"+++ b/doc.txt\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-a\n" +
		"\\ No newline at end of file\n" +
		"+a\n"
	assert.Equal(t, want, got)
}

func TestUnifiedDiff_UnterminatedContext(t *testing.T) {
	got := UnifiedDiff("doc.txt", "x\nend", "y\nend")

	want := "--- a/doc.txt\n" +
		"+++ b/doc.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		"-x\n" +
		"+y\n" +
		" end\n" +
		"\\ No newline at end of file\n"
	assert.Equal(t, want, got)
}

func TestUnifiedDiff_Identical(t *testing.T) {
	assert.Empty(t, UnifiedDiff("doc.txt", "same\n", "same\n"))
}

func TestHunks_Replace(t *testing.T) {
	hunks := Hunks("one\ntwo\nthree\n", "one\n2\nthree\n", DiffContext)
	require.Len(t, hunks, 1)

	h := hunks[0]
	assert.Equal(t, "@@ -1,3 +1,3 @@", h.Header())
	assert.Equal(t, []DiffLine{
		{Kind: LineContext, Text: "one"},
		{Kind: LineRemoved, Text: "two"},
		{Kind: LineAdded, Text: "2"},
		{Kind: LineContext, Text: "three"},
	}, h.Lines)
}

func TestHunks_SeparatedChanges(t *testing.T) {
	var before, after strings.Builder
	for i := 0; i < 20; i++ {
		line := string(rune('a'+i)) + "\n"
		before.WriteString(line)
		switch i {
		case 1, 18:
			after.WriteString("changed\n")
		default:
			after.WriteString(line)
		}
	}

	hunks := Hunks(before.String(), after.String(), 3)
	require.Len(t, hunks, 2)
	assert.Equal(t, 1, hunks[0].OldStart)
	assert.Equal(t, 5, hunks[0].OldLines) // a, -b, c, d, e
	assert.Equal(t, 16, hunks[1].OldStart)
	assert.Equal(t, 5, hunks[1].OldLines) // p, q, r, -s, t
}

func TestHunks_CloseChangesMerge(t *testing.T) {
	before := "a\nb\nc\nd\ne\nf\n"
	after := "A\nb\nc\nd\ne\nF\n"

	hunks := Hunks(before, after, 3)
	require.Len(t, hunks, 1)
	assert.Equal(t, 6, hunks[0].OldLines)
	assert.Equal(t, 6, hunks[0].NewLines)
}

func TestHunks_InsertIntoEmpty(t *testing.T) {
	hunks := Hunks("", "x\n", DiffContext)
	require.Len(t, hunks, 1)
	assert.Equal(t, "@@ -0,0 +1,1 @@", hunks[0].Header())
}
