package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/runner"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // All plans applied, all scenarios passed
	ExitFailure      = 1 // A plan or scenario failed on an anchor
	ExitCommandError = 2 // The command could not run: bad plan, unreadable document, journal
)

// ExitError carries the process exit code for a command error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors come from cobra argument and flag parsing
// and map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// CLIResponse is the JSON envelope every command writes.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // E001, E201, ...
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PatchDetails locates the op that stopped a plan.
type PatchDetails struct {
	PatchCode patch.ErrorCode `json:"patch_code"`
	Index     int             `json:"index"`
	Op        string          `json:"op,omitempty"`
	Anchor    string          `json:"anchor"`
}

func (d PatchDetails) String() string {
	if d.Op != "" {
		return fmt.Sprintf("op %d (%s), anchor %q", d.Index, d.Op, d.Anchor)
	}
	return fmt.Sprintf("op %d, anchor %q", d.Index, d.Anchor)
}

// runError converts an error returned by runner.Run into its CLI error and
// the exit code it warrants.
func runError(err error) (*CLIError, int) {
	e := &CLIError{Message: err.Error()}

	var pe *patch.Error
	if errors.As(err, &pe) {
		e.Code = MapPatchErrorCode(pe.Code)
		e.Details = PatchDetails{
			PatchCode: pe.Code,
			Index:     pe.Index,
			Op:        pe.Op,
			Anchor:    pe.Anchor,
		}
		if pe.Code == patch.ErrCodeInvalidOp {
			return e, ExitCommandError
		}
		return e, ExitFailure
	}

	switch {
	case errors.Is(err, runner.ErrLoad):
		e.Code = ErrCodePlanDocument
	case errors.Is(err, runner.ErrSave):
		e.Code = ErrCodeWriteFailed
	default:
		e.Code = ErrCodeJournal
	}
	return e, ExitCommandError
}

// OutputFormatter renders command results as JSON envelopes or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; defaults to Writer
	Verbose   bool
}

// Report writes data in an indented envelope. A non-nil failure makes the
// status "error".
func (f *OutputFormatter) Report(data any, failure *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if failure != nil {
		resp.Status = "error"
		resp.Error = failure
	}
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// Error reports an error that stopped a command.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.Report(nil, &CLIError{Code: code, Message: message, Details: details})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "  at %v\n", details)
	}
	return nil
}

// Apply writes the result of an apply command. In JSON the envelope's error
// is the first failing plan's. In text each plan gets a ✓ or ✗ line,
// followed by its diff when showDiff is set.
func (f *OutputFormatter) Apply(result ApplyResult, showDiff bool, printer *diffPrinter) error {
	if f.Format == "json" {
		return f.Report(result, result.firstError())
	}

	w := f.Writer
	for _, pr := range result.Plans {
		name := pr.Plan
		if name == "" {
			name = pr.File
		}
		out := pr.Outcome

		if pr.Error != nil {
			if out != nil {
				fmt.Fprintf(w, "✗ %s → %s\n", name, out.Locator)
			} else {
				fmt.Fprintf(w, "✗ %s\n", name)
			}
			fmt.Fprintf(w, "  %s: %s\n", pr.Error.Code, pr.Error.Message)
			if d, ok := pr.Error.Details.(PatchDetails); ok && f.Verbose {
				fmt.Fprintf(w, "  at %s\n", d)
			}
			continue
		}

		fmt.Fprintf(w, "✓ %s → %s (%s)\n", name, out.Locator, describeOutcome(out))
		if showDiff && out.Diff != "" {
			printer.Print(w, out.Diff)
		}
	}

	if result.Total > 1 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d plan(s): %d succeeded, %d failed\n", result.Total, result.Succeeded, result.Failed)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is enabled. It goes
// to ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
