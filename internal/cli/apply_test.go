package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorpatch/internal/journal"
)

const testPage = "<main>\n  <section>content</section>\n</main>\n"

const headingPlan = `name: heading
document: page.tsx
ops:
  - name: heading
    placement: after
    anchor: "<main>\n"
    payload: "  <h1>Title</h1>\n"
`

const brokenPlan = `name: broken
document: page.tsx
ops:
  - name: heading
    placement: after
    anchor: "<main>\n"
    payload: "  <h1>Title</h1>\n"
  - name: sidebar
    placement: before
    anchor: "<aside>"
    payload: "<nav/>"
`

// writeWorkspace creates a directory holding page.tsx and the given plan
// files, and returns it.
func writeWorkspace(t *testing.T, plans map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.tsx"), []byte(testPage), 0644))
	for name, content := range plans {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func executeApply(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format, Color: "never"}
	cmd := NewApplyCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type applyResponse struct {
	Status string      `json:"status"`
	Data   ApplyResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

func TestApply_WritesDocument(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"plan.yaml": headingPlan})

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ heading → page.tsx (1 applied, written)")
	assert.Equal(t, "<main>\n  <h1>Title</h1>\n  <section>content</section>\n</main>\n",
		readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_FailureLeavesDocumentUntouched(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"plan.yaml": brokenPlan})

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ broken → page.tsx")
	assert.Contains(t, out, "E201: ANCHOR_NOT_FOUND: op 1 (sidebar)")
	assert.Equal(t, testPage, readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_DryRunDiff(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"plan.yaml": headingPlan})

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"), "--dry-run", "--diff")
	require.NoError(t, err)

	assert.Contains(t, out, "dry run, not written")
	assert.Contains(t, out, "--- a/page.tsx\n+++ b/page.tsx\n")
	assert.Contains(t, out, "+  <h1>Title</h1>\n")
	assert.NotContains(t, out, "\x1b[")
	assert.Equal(t, testPage, readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_AlreadyPatchedIsUnchanged(t *testing.T) {
	plan := headingPlan + "    skip_if_present: \"<h1>\"\n"
	dir := writeWorkspace(t, map[string]string{"plan.yaml": plan})

	_, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.NoError(t, err)
	patched := readFile(t, filepath.Join(dir, "page.tsx"))

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "0 applied, 1 skipped, unchanged")
	assert.Equal(t, patched, readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_JSON(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"a.yaml": headingPlan,
		"b.yaml": brokenPlan,
	})

	out, err := executeApply(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp applyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeAnchorNotFound, resp.Error.Code)

	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Succeeded)
	assert.Equal(t, 1, resp.Data.Failed)

	ok := resp.Data.Plans[0]
	assert.Equal(t, "heading", ok.Plan)
	require.NotNil(t, ok.Outcome)
	assert.True(t, ok.Outcome.Saved)
	assert.Equal(t, journal.StatusSucceeded, ok.Outcome.Status)

	failed := resp.Data.Plans[1]
	require.NotNil(t, failed.Error)
	details, isMap := failed.Error.Details.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "ANCHOR_NOT_FOUND", details["patch_code"])
	assert.Equal(t, float64(1), details["index"])
	assert.Equal(t, "<aside>", details["anchor"])
}

func TestApply_Journal(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"broken.yaml":  brokenPlan,
		"heading.yaml": headingPlan,
	})
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := executeApply(t, "text", filepath.Join(dir, "broken.yaml"), "--db", db)
	require.Error(t, err)
	_, err = executeApply(t, "text", filepath.Join(dir, "heading.yaml"), "--db", db)
	require.NoError(t, err)

	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.ListRuns(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, journal.StatusFailed, runs[0].Status)
	assert.Equal(t, 1, runs[0].FailedIndex)
	assert.Equal(t, journal.StatusSucceeded, runs[1].Status)
	assert.True(t, runs[1].Saved)
}

func TestApply_DocumentOverride(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"plan.yaml": headingPlan})
	other := filepath.Join(t.TempDir(), "other.tsx")
	require.NoError(t, os.WriteFile(other, []byte(testPage), 0644))

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"), "--document", other)
	require.NoError(t, err)

	assert.Contains(t, out, "→ "+other)
	assert.Contains(t, readFile(t, other), "<h1>Title</h1>")
	assert.Equal(t, testPage, readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_MissingDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.yaml"), []byte(headingPlan), 0644))

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodePlanDocument)
}

func TestApply_InvalidPlan(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"plan.yaml": "document: page.tsx\nops:\n  - placement: sideways\n    anchor: x\n",
	})

	out, err := executeApply(t, "text", filepath.Join(dir, "plan.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ "+filepath.Join(dir, "plan.yaml"))
	assert.Contains(t, out, ErrCodePlanInvalid)
	assert.Equal(t, testPage, readFile(t, filepath.Join(dir, "page.tsx")))
}

func TestApply_NonExistentPath(t *testing.T) {
	out, err := executeApply(t, "text", "/nonexistent/plan.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestApply_EmptyDirectory(t *testing.T) {
	_, err := executeApply(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestApply_DirectoryAppliesInOrder(t *testing.T) {
	footer := `name: footer
document: page.tsx
ops:
  - placement: before
    anchor: "</main>"
    payload: "  <footer/>\n"
`
	dir := writeWorkspace(t, map[string]string{
		"01-heading.yaml": headingPlan,
		"02-footer.yml":   footer,
		"notes.txt":       "not a plan",
	})

	out, err := executeApply(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 plan(s): 2 succeeded, 0 failed")
	assert.Equal(t, "<main>\n  <h1>Title</h1>\n  <section>content</section>\n  <footer/>\n</main>\n",
		readFile(t, filepath.Join(dir, "page.tsx")))
}
