package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorpatch/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Document string // optional - filter to one locator
	Status   string // optional - filter by run status
	Limit    int
}

// HistoryResult holds the runs listed by the history command.
type HistoryResult struct {
	Runs  []journal.Run `json:"runs"`
	Total int           `json:"total"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plan runs",
		Long: `List runs recorded in a journal by apply --db.

Runs are shown oldest first. With --limit, only the most recent N runs are
listed. Failed runs show the index, code and anchor of the op that failed.

Examples:
  anchorpatch history --db .anchorpatch.db
  anchorpatch history --db .anchorpatch.db --document app/page.tsx --limit 10
  anchorpatch history --db .anchorpatch.db --status failed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Document, "document", "", "only runs against this document locator")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (succeeded|failed|dry_run)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	status := journal.Status(opts.Status)
	switch status {
	case "", journal.StatusSucceeded, journal.StatusFailed, journal.StatusDryRun:
	default:
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid status %q", opts.Status))
	}
	if opts.Limit < 0 {
		return commandError(formatter, ErrCodeGeneric, "limit must be non-negative")
	}

	// Opening would create an empty journal
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Database))
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err))
	}
	defer j.Close()

	runs, err := j.ListRuns(ctx, journal.Filter{
		Locator: opts.Document,
		Status:  status,
		Limit:   opts.Limit,
	})
	if err != nil {
		return commandError(formatter, ErrCodeJournal, fmt.Sprintf("failed to list runs: %v", err))
	}
	formatter.VerboseLog("Found %d run(s) in %s", len(runs), opts.Database)

	if runs == nil {
		runs = []journal.Run{}
	}
	result := HistoryResult{Runs: runs, Total: len(runs)}

	if opts.Format == "json" {
		return formatter.Report(result, nil)
	}

	outputHistoryText(cmd.OutOrStdout(), result)
	return nil
}

func outputHistoryText(w io.Writer, result HistoryResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tPLAN\tDOCUMENT\tSTATUS\tAPPLIED\tDETAIL")
	for _, run := range result.Runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			run.Seq, run.ID, run.PlanName, run.Locator, run.Status,
			run.Applied, run.OpCount, runDetail(run))
	}
	tw.Flush()
}

func runDetail(run journal.Run) string {
	switch run.Status {
	case journal.StatusFailed:
		if run.ErrorCode == "" {
			return run.ErrorMessage
		}
		return fmt.Sprintf("op %d: %s (anchor=%q)", run.FailedIndex, run.ErrorCode, run.ErrorAnchor)
	case journal.StatusSucceeded:
		if run.Saved {
			return "written"
		}
		return "unchanged"
	default:
		return ""
	}
}
