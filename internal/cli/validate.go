package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorpatch/internal/plan"
)

// ValidationError is one problem found in a plan file.
type ValidationError struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan>...",
		Short: "Validate plans without touching documents",
		Long: `Validate patch plans without applying them.

Checks syntax, the plan schema, op structure and payload files. Target
documents are never read, so anchors are not resolved.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
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

	var validationErrors []ValidationError
	for _, file := range files {
		formatter.VerboseLog("Validating plan: %s", file)
		validationErrors = append(validationErrors, validateFile(file)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(files))
}

// validateFile loads one plan and converts every problem into a
// ValidationError.
func validateFile(file string) []ValidationError {
	_, err := plan.LoadFile(file)
	if err == nil {
		return nil
	}

	var errs plan.Errors
	if !errors.As(err, &errs) {
		return []ValidationError{{
			File:    file,
			Code:    ErrCodeGeneric,
			Message: err.Error(),
		}}
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		ve := ValidationError{
			File:    file,
			Field:   e.Field,
			Code:    MapPlanErrorCode(e),
			Message: e.Message,
		}
		if e.Pos.IsValid() {
			ve.Line = e.Pos.Line()
		}
		out = append(out, ve)
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Report(ValidationResult{Valid: true, Files: files}, nil)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d plan(s) valid\n", files)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}
		failure := &CLIError{Code: errs[0].Code, Message: errs[0].Message}
		if err := formatter.Report(result, failure); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.File)
		}
		if err.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
