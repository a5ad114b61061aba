package cli

import (
	"strings"

	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/plan"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No plan files found
	ErrCodeTestFailed  = "E004" // One or more scenarios failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // Document or golden file write error
	ErrCodeJournal     = "E008" // Journal open/read/write error

	// Plan errors
	ErrCodePlanSyntax   = "E101" // YAML/CUE syntax or schema error
	ErrCodePlanInvalid  = "E102" // Structurally invalid plan
	ErrCodePlanPayload  = "E103" // payload_file could not be read
	ErrCodePlanDocument = "E104" // Target document could not be loaded

	// Patch errors
	ErrCodeAnchorNotFound           = "E201" // ANCHOR_NOT_FOUND
	ErrCodeAnchorAmbiguous          = "E202" // ANCHOR_AMBIGUOUS
	ErrCodeSecondaryPrecedesPrimary = "E203" // SECONDARY_ANCHOR_PRECEDES_PRIMARY
	ErrCodeInvalidOp                = "E204" // INVALID_OP
)

// MapPatchErrorCode maps a patch error code to a CLI error code.
func MapPatchErrorCode(code patch.ErrorCode) string {
	switch code {
	case patch.ErrCodeAnchorNotFound:
		return ErrCodeAnchorNotFound
	case patch.ErrCodeAnchorAmbiguous:
		return ErrCodeAnchorAmbiguous
	case patch.ErrCodeSecondaryPrecedesPrimary:
		return ErrCodeSecondaryPrecedesPrimary
	case patch.ErrCodeInvalidOp:
		return ErrCodeInvalidOp
	default:
		return ErrCodeGeneric
	}
}

// MapPlanErrorCode maps a plan error field to a CLI error code.
func MapPlanErrorCode(e *plan.PlanError) string {
	switch {
	case e.Field == "yaml" || e.Field == "cue":
		return ErrCodePlanSyntax
	case strings.HasSuffix(e.Field, ".payload_file"):
		return ErrCodePlanPayload
	default:
		return ErrCodePlanInvalid
	}
}
