package runner

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorpatch/internal/digest"
	"github.com/roach88/anchorpatch/internal/docstore"
	"github.com/roach88/anchorpatch/internal/journal"
	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/plan"
	"github.com/roach88/anchorpatch/internal/testutil"
)

const page = `<main>
  <div className="grid gap-6 lg:grid-cols-4">
    <section>content</section>
  </div>
</main>
`

func mobilePlan() *plan.Plan {
	return &plan.Plan{
		Name:     "mobile-layout",
		Document: "page.tsx",
		Ops: []plan.OpSpec{
			{Name: "heading", Placement: "after", Anchor: "<main>\n", Payload: "  <h1>Title</h1>\n"},
			{Name: "grid", Placement: "replace", Anchor: `className="grid gap-6 lg:grid-cols-4"`, Payload: `className="hidden lg:grid lg:grid-cols-4"`},
		},
	}
}

func failingPlan() *plan.Plan {
	p := mobilePlan()
	p.Ops = append(p.Ops, plan.OpSpec{Name: "missing", Placement: "before", Anchor: "<aside>", Payload: "x"})
	return p
}

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRun_SavesOnSuccess(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store, IDs: testutil.NewFixedIDGenerator("run-1")}

	out, err := r.Run(context.Background(), mobilePlan(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, journal.StatusSucceeded, out.Status)
	assert.True(t, out.Changed)
	assert.True(t, out.Saved)
	assert.Equal(t, 1, store.Saves())
	require.Len(t, out.Reports, 2)
	assert.Equal(t, "heading", out.Reports[0].Name)

	saved, err := store.Load(context.Background(), "page.tsx")
	require.NoError(t, err)
	assert.Contains(t, saved, "<main>\n  <h1>Title</h1>\n")
	assert.Contains(t, saved, `className="hidden lg:grid lg:grid-cols-4"`)
	assert.Equal(t, digest.Document(page), out.BeforeHash)
	assert.Equal(t, digest.Document(saved), out.AfterHash)
}

func TestRun_FailureSavesNothing(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store}

	out, err := r.Run(context.Background(), failingPlan(), Options{})
	require.Error(t, err)
	assert.True(t, patch.IsNotFound(err))

	var pe *patch.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Index)
	assert.Equal(t, "missing", pe.Op)

	require.NotNil(t, out)
	assert.Equal(t, journal.StatusFailed, out.Status)
	assert.False(t, out.Saved)
	assert.Empty(t, out.Reports)
	assert.Equal(t, 0, store.Saves())

	doc, err := store.Load(context.Background(), "page.tsx")
	require.NoError(t, err)
	assert.Equal(t, page, doc)
}

func TestRun_DryRun(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store}

	out, err := r.Run(context.Background(), mobilePlan(), Options{DryRun: true, Diff: true})
	require.NoError(t, err)

	assert.Equal(t, journal.StatusDryRun, out.Status)
	assert.True(t, out.Changed)
	assert.False(t, out.Saved)
	assert.Equal(t, 0, store.Saves())
	assert.Contains(t, out.Diff, "+++ b/page.tsx")
	assert.Contains(t, out.Diff, "+  <h1>Title</h1>")
}

func TestRun_UnchangedIsNotSaved(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	p := &plan.Plan{
		Name:     "guarded",
		Document: "page.tsx",
		Ops: []plan.OpSpec{
			{Placement: "after", Anchor: "<main>", Payload: "<h1/>", SkipIfPresent: "<section>"},
		},
	}
	r := &Runner{Store: store}

	out, err := r.Run(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.False(t, out.Saved)
	assert.Equal(t, 0, store.Saves())
	require.Len(t, out.Reports, 1)
	assert.True(t, out.Reports[0].Skipped)
}

func TestRun_LocatorOverride(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"other.tsx": page})
	r := &Runner{Store: store}

	out, err := r.Run(context.Background(), mobilePlan(), Options{Locator: "other.tsx"})
	require.NoError(t, err)
	assert.Equal(t, "other.tsx", out.Locator)
	assert.Equal(t, []string{"other.tsx"}, store.Locators())
}

func TestRun_MissingDocument(t *testing.T) {
	r := &Runner{Store: docstore.NewMemStore(nil)}

	out, err := r.Run(context.Background(), mobilePlan(), Options{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.ErrorIs(t, err, ErrLoad)
}

type failingStore struct {
	*docstore.MemStore
}

func (failingStore) Save(ctx context.Context, locator, doc string) error {
	return fs.ErrPermission
}

func TestRun_SaveError(t *testing.T) {
	store := failingStore{docstore.NewMemStore(map[string]string{"page.tsx": page})}
	j := openJournal(t)
	r := &Runner{Store: store, Journal: j}

	out, err := r.Run(context.Background(), mobilePlan(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSave)
	assert.ErrorIs(t, err, fs.ErrPermission)

	require.NotNil(t, out)
	assert.Equal(t, journal.StatusFailed, out.Status)
	assert.True(t, out.Changed)
	assert.False(t, out.Saved)

	runs, err := j.ListRuns(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusFailed, runs[0].Status)
	assert.False(t, runs[0].Saved)
	assert.Equal(t, 0, runs[0].Applied)
	assert.Equal(t, -1, runs[0].FailedIndex)
	assert.Empty(t, runs[0].ErrorCode)
	assert.Contains(t, runs[0].ErrorMessage, "save document")
}

func TestRun_FailedRunAppliesNothing(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	store := docstore.NewMemStore(map[string]string{"doc.txt": "abc"})
	p := &plan.Plan{
		Name:     "guarded",
		Document: "doc.txt",
		Ops: []plan.OpSpec{
			{Placement: "after", Anchor: "a", Payload: "X", SkipIfPresent: "b"},
			{Placement: "after", Anchor: "zzz", Payload: "Y"},
		},
	}
	r := &Runner{Store: store, Journal: j}

	out, err := r.Run(ctx, p, Options{})
	require.Error(t, err)
	assert.Equal(t, patch.ErrCodeAnchorNotFound, patch.CodeOf(err))
	assert.Equal(t, journal.StatusFailed, out.Status)
	assert.Equal(t, 0, store.Saves())

	runs, err := j.ListRuns(ctx, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Applied)
	assert.Equal(t, 1, runs[0].FailedIndex)
	assert.Equal(t, 2, runs[0].OpCount)
}

func TestRun_InvalidOp(t *testing.T) {
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	p := &plan.Plan{
		Name:     "bad",
		Document: "page.tsx",
		Ops:      []plan.OpSpec{{Placement: "between", Anchor: "<main>"}},
	}
	r := &Runner{Store: store}

	_, err := r.Run(context.Background(), p, Options{})
	require.Error(t, err)
	assert.Equal(t, patch.ErrCodeInvalidOp, patch.CodeOf(err))
	assert.Equal(t, 0, store.Saves())
}

func TestRun_RequiresStoreAndPlan(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), mobilePlan(), Options{})
	assert.Error(t, err)

	_, err = (&Runner{Store: docstore.NewMemStore(nil)}).Run(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestRun_Journal(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store, Journal: j, IDs: testutil.NewSequentialIDGenerator("run")}

	_, err := r.Run(ctx, failingPlan(), Options{})
	require.Error(t, err)
	_, err = r.Run(ctx, mobilePlan(), Options{DryRun: true})
	require.NoError(t, err)
	_, err = r.Run(ctx, mobilePlan(), Options{})
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx, journal.Filter{Locator: "page.tsx"})
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, journal.StatusFailed, runs[0].Status)
	assert.Equal(t, 2, runs[0].FailedIndex)
	assert.Equal(t, "ANCHOR_NOT_FOUND", runs[0].ErrorCode)
	assert.Equal(t, "<aside>", runs[0].ErrorAnchor)
	assert.Equal(t, 0, runs[0].Applied)
	assert.False(t, runs[0].Saved)

	assert.Equal(t, journal.StatusDryRun, runs[1].Status)
	assert.False(t, runs[1].Saved)

	assert.Equal(t, journal.StatusSucceeded, runs[2].Status)
	assert.True(t, runs[2].Saved)
	assert.Equal(t, 2, runs[2].Applied)
	assert.Equal(t, runs[1].PlanFingerprint, runs[2].PlanFingerprint)
	assert.NotEqual(t, runs[0].PlanFingerprint, runs[2].PlanFingerprint)

	got, err := j.GetRun(ctx, "run-3")
	require.NoError(t, err)
	require.Len(t, got.Ops, 2)
	assert.Equal(t, patch.PlaceReplace, got.Ops[1].Placement)
}

func TestRun_JournalErrorAfterSave(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.Close())

	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store, Journal: j}

	out, err := r.Run(context.Background(), mobilePlan(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal run")

	// The save is not rolled back.
	require.NotNil(t, out)
	assert.True(t, out.Saved)
	assert.Equal(t, 1, store.Saves())
}

func TestRun_FileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.tsx")
	require.NoError(t, os.WriteFile(path, []byte(page), 0600))

	store, err := docstore.NewFileStore(dir, docstore.EncodingUTF8)
	require.NoError(t, err)
	r := &Runner{Store: store}

	_, err = r.Run(context.Background(), failingPlan(), Options{})
	require.Error(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, page, string(data))

	_, err = r.Run(context.Background(), mobilePlan(), Options{})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Title</h1>")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	r := &Runner{Store: store, Logger: logger, IDs: testutil.NewFixedIDGenerator("run-1")}

	_, err := r.Run(context.Background(), mobilePlan(), Options{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "plan applied")
	assert.Contains(t, out, "plan=mobile-layout")
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "op applied")
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := docstore.NewMemStore(map[string]string{"page.tsx": page})
	_, err := (&Runner{Store: store}).Run(ctx, mobilePlan(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14])
}
