// Package runner executes a plan against a document store as a single
// transaction: the document is loaded once, every op is applied in memory,
// and the result is saved once, only if every op succeeded.
//
// Each execution is optionally recorded in a journal, including failures
// and dry runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/anchorpatch/internal/digest"
	"github.com/roach88/anchorpatch/internal/docstore"
	"github.com/roach88/anchorpatch/internal/journal"
	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/plan"
)

// Stage errors returned by Run. They wrap the underlying store error, which
// remains reachable through errors.Is and errors.As.
var (
	ErrLoad = errors.New("load document")
	ErrSave = errors.New("save document")
)

// Runner applies plans. Store is required; the other fields have defaults.
type Runner struct {
	Store   docstore.Store
	Journal *journal.Journal // nil disables run recording
	Logger  *slog.Logger
	IDs     IDGenerator
}

// Options control a single Run.
type Options struct {
	// DryRun applies the pipeline but never saves.
	DryRun bool

	// Diff renders a unified diff of the change into Outcome.Diff.
	Diff bool

	// Locator overrides the plan's document locator.
	Locator string
}

// Outcome describes one run. It is returned for failed runs too, alongside
// the error, so callers can report what was attempted.
type Outcome struct {
	RunID      string           `json:"run_id"`
	Plan       string           `json:"plan"`
	Locator    string           `json:"locator"`
	Status     journal.Status   `json:"status"`
	Changed    bool             `json:"changed"`
	Saved      bool             `json:"saved"`
	Reports    []patch.OpReport `json:"ops,omitempty"`
	Diff       string           `json:"diff,omitempty"`
	BeforeHash string           `json:"before_hash"`
	AfterHash  string           `json:"after_hash,omitempty"`
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (r *Runner) ids() IDGenerator {
	if r.IDs != nil {
		return r.IDs
	}
	return UUIDv7Generator{}
}

// Run applies p to its document.
//
// Errors loading the plan's ops or the document are returned with a nil
// Outcome and nothing is journaled. A failing op returns its *patch.Error
// together with a failed Outcome; the store is left untouched and the run is
// journaled with no ops applied. A failed save is journaled the same way and
// returned wrapped in ErrSave. If the journal cannot record a run whose
// document was already saved, the save stands and the journal error is
// returned wrapped.
func (r *Runner) Run(ctx context.Context, p *plan.Plan, opts Options) (*Outcome, error) {
	if r.Store == nil {
		return nil, errors.New("runner: no document store")
	}
	if p == nil {
		return nil, errors.New("runner: nil plan")
	}

	ops, err := p.PatchOps()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.Name, err)
	}
	fingerprint, err := p.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.Name, err)
	}

	locator := p.Document
	if opts.Locator != "" {
		locator = opts.Locator
	}

	before, err := r.Store.Load(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	log := r.logger().With("plan", p.Name, "locator", locator)
	out := &Outcome{
		RunID:      r.ids().Generate(),
		Plan:       p.Name,
		Locator:    locator,
		BeforeHash: digest.Document(before),
	}
	run := &journal.Run{
		ID:              out.RunID,
		PlanName:        p.Name,
		PlanFingerprint: fingerprint,
		Locator:         locator,
		BeforeHash:      out.BeforeHash,
		OpCount:         len(ops),
		FailedIndex:     -1,
	}

	log.Debug("applying plan", "run_id", out.RunID, "ops", len(ops), "dry_run", opts.DryRun)

	pipeline := patch.NewPipeline(ops, patch.WithLogger(log))
	result, applyErr := pipeline.Apply(before)
	if applyErr != nil {
		out.Status = journal.StatusFailed
		run.Status = journal.StatusFailed

		var pe *patch.Error
		if errors.As(applyErr, &pe) {
			run.FailedIndex = pe.Index
			run.ErrorCode = string(pe.Code)
			run.ErrorAnchor = pe.Anchor
		}
		run.ErrorMessage = applyErr.Error()

		log.Info("plan failed, document not saved", "run_id", out.RunID, "error", applyErr)
		if err := r.record(ctx, run); err != nil {
			return out, errors.Join(applyErr, err)
		}
		return out, applyErr
	}

	out.Reports = result.Ops
	out.AfterHash = digest.Document(result.Document)
	out.Changed = result.Document != before
	if opts.Diff {
		out.Diff = UnifiedDiff(locator, before, result.Document)
	}

	out.Status = journal.StatusSucceeded
	if opts.DryRun {
		out.Status = journal.StatusDryRun
	}

	if !opts.DryRun && out.Changed {
		if err := r.Store.Save(ctx, locator, result.Document); err != nil {
			saveErr := fmt.Errorf("%w %s: %w", ErrSave, locator, err)
			out.Status = journal.StatusFailed
			run.Status = journal.StatusFailed
			run.AfterHash = out.AfterHash
			run.ErrorMessage = saveErr.Error()

			log.Info("plan applied but document not saved", "run_id", out.RunID, "error", saveErr)
			if err := r.record(ctx, run); err != nil {
				return out, errors.Join(saveErr, err)
			}
			return out, saveErr
		}
		out.Saved = true
	}

	run.Status = out.Status
	run.AfterHash = out.AfterHash
	run.Applied = result.Applied()
	run.Saved = out.Saved
	run.Ops = result.Ops

	log.Info("plan applied",
		"run_id", out.RunID,
		"applied", run.Applied,
		"changed", out.Changed,
		"saved", out.Saved,
	)

	if err := r.record(ctx, run); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Runner) record(ctx context.Context, run *journal.Run) error {
	if r.Journal == nil {
		return nil
	}
	if _, err := r.Journal.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("journal run %s: %w", run.ID, err)
	}
	return nil
}
