package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/anchorpatch/internal/docstore"
	"github.com/roach88/anchorpatch/internal/journal"
	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/runner"
	"github.com/roach88/anchorpatch/internal/testutil"
)

// scenarioLocator is the store key the scenario document lives under.
const scenarioLocator = "document"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Document is the store content after the run: the patched document on
	// success, the untouched original on failure.
	Document string `json:"document"`

	// Ops reports each op of a successful run.
	Ops []patch.OpReport `json:"ops,omitempty"`

	// Failure is the pipeline error, if the run failed.
	Failure *patch.Error `json:"failure,omitempty"`

	// Run is the journal record of the execution.
	Run *journal.Run `json:"run,omitempty"`

	// Errors lists every failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario and checks its expectations.
//
// An error is returned only when the scenario could not be executed at all;
// unmet expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with pipeline logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	store := docstore.NewMemStore(map[string]string{scenarioLocator: scenario.Document})
	r := &runner.Runner{
		Store:   store,
		Journal: j,
		Logger:  logger,
		IDs:     testutil.NewFixedIDGenerator(scenario.Name),
	}

	out, runErr := r.Run(ctx, scenario.Plan(), runner.Options{})

	var failure *patch.Error
	if runErr != nil && !errors.As(runErr, &failure) {
		return nil, fmt.Errorf("failed to run scenario: %w", runErr)
	}
	if out == nil {
		return nil, fmt.Errorf("failed to run scenario: %w", runErr)
	}

	result := NewResult()
	result.Failure = failure

	doc, err := store.Load(ctx, scenarioLocator)
	if err != nil {
		return nil, fmt.Errorf("failed to read final document: %w", err)
	}
	result.Document = doc
	result.Ops = out.Reports

	run, err := j.GetRun(ctx, out.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Run = run

	checkOutcome(scenario, result, store.Saves())
	checkExpect(scenario, result)
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// checkOutcome verifies the transactional guarantee for the run.
func checkOutcome(s *Scenario, r *Result, saves int) {
	if r.Failure == nil {
		if r.Run.Status != journal.StatusSucceeded {
			r.AddError(fmt.Sprintf("journal status = %s, want %s", r.Run.Status, journal.StatusSucceeded))
		}
		return
	}

	if saves != 0 {
		r.AddError(fmt.Sprintf("document saved %d time(s) by a failed run", saves))
	}
	if r.Document != s.Document {
		r.AddError("document changed by a failed run")
	}
	if r.Run.Status != journal.StatusFailed || r.Run.FailedIndex != r.Failure.Index {
		r.AddError(fmt.Sprintf("journal recorded status=%s failed_index=%d, want failed at op %d",
			r.Run.Status, r.Run.FailedIndex, r.Failure.Index))
	}
}

func checkExpect(s *Scenario, r *Result) {
	want := s.Expect.Error
	switch {
	case want == nil && r.Failure != nil:
		r.AddError(fmt.Sprintf("unexpected failure: %v", r.Failure))
	case want != nil && r.Failure == nil:
		r.AddError(fmt.Sprintf("expected %s at op %d, but the pipeline succeeded", want.Code, want.Index))
	case want != nil:
		if r.Failure.Code != want.Code {
			r.AddError(fmt.Sprintf("error code = %s, want %s", r.Failure.Code, want.Code))
		}
		if r.Failure.Index != want.Index {
			r.AddError(fmt.Sprintf("failing op = %d, want %d", r.Failure.Index, want.Index))
		}
	}

	if s.Expect.Document != nil && r.Document != *s.Expect.Document {
		r.AddError("document mismatch:\n" + runner.UnifiedDiff(scenarioLocator, *s.Expect.Document, r.Document))
	}
}

// EvaluateAssertions checks assertions against a result and returns one
// message per failed assertion.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(r *Result, a Assertion) error {
	doc := r.Document
	switch a.Type {
	case AssertContains:
		if !strings.Contains(doc, a.Text) {
			return fmt.Errorf("%q not found in document", a.Text)
		}
	case AssertAbsent:
		if strings.Contains(doc, a.Text) {
			return fmt.Errorf("%q found in document", a.Text)
		}
	case AssertCount:
		if n := strings.Count(doc, a.Text); n != a.Count {
			return fmt.Errorf("%q occurs %d time(s), want %d", a.Text, n, a.Count)
		}
	case AssertOrder:
		pos := -1
		for _, text := range a.Texts {
			idx := strings.Index(doc[pos+1:], text)
			if idx < 0 {
				return fmt.Errorf("%q not found after offset %d", text, pos+1)
			}
			pos += 1 + idx
		}
	case AssertSkipped:
		for _, op := range r.Ops {
			if op.Name == a.Op {
				if !op.Skipped {
					return fmt.Errorf("op %q was applied", a.Op)
				}
				return nil
			}
		}
		return fmt.Errorf("op %q did not run", a.Op)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
