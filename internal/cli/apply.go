package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorpatch/internal/docstore"
	"github.com/roach88/anchorpatch/internal/journal"
	"github.com/roach88/anchorpatch/internal/plan"
	"github.com/roach88/anchorpatch/internal/runner"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun   bool
	Diff     bool
	Database string // optional journal; empty disables recording
	Document string // overrides every plan's document path

	// IDs generates run IDs. Nil means UUIDv7.
	IDs runner.IDGenerator
}

// PlanResult is the outcome of applying one plan file.
type PlanResult struct {
	File    string          `json:"file"`
	Plan    string          `json:"plan,omitempty"`
	Outcome *runner.Outcome `json:"outcome,omitempty"`
	Error   *CLIError       `json:"error,omitempty"`
}

// ApplyResult holds the overall apply result.
type ApplyResult struct {
	Plans     []PlanResult `json:"plans"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Total     int          `json:"total"`
}

func (r ApplyResult) firstError() *CLIError {
	for _, pr := range r.Plans {
		if pr.Error != nil {
			return pr.Error
		}
	}
	return nil
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <plan>...",
		Short: "Apply patch plans to their documents",
		Long: `Apply one or more patch plans.

Each plan is a single transaction: its document is loaded once, every op is
applied in order, and the result is written back only if all ops succeed.
A failing op leaves the document byte-for-byte unchanged. Directories are
searched for .yaml, .yml and .cue plan files.

Exit codes:
  0 - All plans applied
  1 - One or more plans failed (anchor not found, ambiguous, ...)
  2 - Command error (invalid plan, unreadable document, ...)

Examples:
  anchorpatch apply plans/mobile-layout.yaml
  anchorpatch apply plans/ --dry-run --diff
  anchorpatch apply fix.cue --document src/app/page.tsx --db .anchorpatch.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "apply in memory without writing documents")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "print a unified diff of each change")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal")
	cmd.Flags().StringVar(&opts.Document, "document", "", "document to patch instead of the plan's own")

	return cmd
}

func runApply(ctx context.Context, opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := FindPlanFiles(paths)
	if err != nil {
		var loadErr *PlanLoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Error())
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	if len(files) == 0 {
		return commandError(formatter, ErrCodeNoFiles, fmt.Sprintf("no plan files found in %v", paths))
	}
	formatter.VerboseLog("Found %d plan file(s)", len(files))

	var j *journal.Journal
	if opts.Database != "" {
		j, err = journal.Open(opts.Database)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err))
		}
		defer j.Close()
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	result := ApplyResult{
		Plans: make([]PlanResult, 0, len(files)),
		Total: len(files),
	}
	exitCode := ExitSuccess

	for _, file := range files {
		pr, code := applyPlan(ctx, opts, file, j, logger)
		result.Plans = append(result.Plans, pr)
		if pr.Error == nil {
			result.Succeeded++
		} else {
			result.Failed++
		}
		if code > exitCode {
			exitCode = code
		}
	}

	printer := newDiffPrinter(useColor(opts.Color, cmd.OutOrStdout()))
	if err := formatter.Apply(result, opts.Diff, printer); err != nil {
		return err
	}

	if exitCode == ExitSuccess {
		return nil
	}
	return NewExitError(exitCode, fmt.Sprintf("%d of %d plan(s) failed", result.Failed, result.Total))
}

// applyPlan runs one plan file and returns its result with the exit code it
// warrants.
func applyPlan(ctx context.Context, opts *ApplyOptions, file string, j *journal.Journal, logger *slog.Logger) (PlanResult, int) {
	pr := PlanResult{File: file}

	p, err := loadPlan(file)
	if err != nil {
		code := ErrCodePlanInvalid
		var loadErr *PlanLoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		pr.Error = &CLIError{Code: code, Message: err.Error()}
		return pr, ExitCommandError
	}
	pr.Plan = p.Name

	store, locator, err := storeFor(p, opts.Document)
	if err != nil {
		pr.Error = &CLIError{Code: ErrCodePlanInvalid, Message: err.Error()}
		return pr, ExitCommandError
	}

	r := &runner.Runner{
		Store:   store,
		Journal: j,
		Logger:  logger.With("file", file),
		IDs:     opts.IDs,
	}
	out, err := r.Run(ctx, p, runner.Options{
		DryRun:  opts.DryRun,
		Diff:    opts.Diff,
		Locator: locator,
	})
	pr.Outcome = out
	if err != nil {
		var exit int
		pr.Error, exit = runError(err)
		return pr, exit
	}
	return pr, ExitSuccess
}

// storeFor builds the document store for a plan. With an override, the
// document path is taken relative to the working directory; otherwise the
// plan's document resolves against the plan file's directory.
func storeFor(p *plan.Plan, override string) (*docstore.FileStore, string, error) {
	enc, err := docstore.ParseEncoding(p.Encoding)
	if err != nil {
		return nil, "", err
	}
	if override != "" {
		store, err := docstore.NewFileStore("", enc)
		return store, override, err
	}
	store, err := docstore.NewFileStore(p.BaseDir(), enc)
	return store, "", err
}

// commandError reports an error that stopped the command before any plan ran.
func commandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func describeOutcome(out *runner.Outcome) string {
	applied, skipped := 0, 0
	for _, r := range out.Reports {
		if r.Skipped {
			skipped++
		} else {
			applied++
		}
	}

	var state string
	switch {
	case out.Status == journal.StatusDryRun && out.Changed:
		state = "dry run, not written"
	case !out.Changed:
		state = "unchanged"
	case out.Saved:
		state = "written"
	}

	if skipped > 0 {
		return fmt.Sprintf("%d applied, %d skipped, %s", applied, skipped, state)
	}
	return fmt.Sprintf("%d applied, %s", applied, state)
}
