package patch

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes patch failures.
type ErrorCode string

const (
	// ErrCodeAnchorNotFound indicates an anchor does not occur in the document.
	ErrCodeAnchorNotFound ErrorCode = "ANCHOR_NOT_FOUND"

	// ErrCodeAnchorAmbiguous indicates a unique anchor occurs more than once.
	ErrCodeAnchorAmbiguous ErrorCode = "ANCHOR_AMBIGUOUS"

	// ErrCodeSecondaryPrecedesPrimary indicates the secondary anchor was not
	// found strictly after the primary anchor.
	ErrCodeSecondaryPrecedesPrimary ErrorCode = "SECONDARY_ANCHOR_PRECEDES_PRIMARY"

	// ErrCodeInvalidOp indicates a malformed op (empty anchor, missing
	// secondary anchor, unknown placement).
	ErrCodeInvalidOp ErrorCode = "INVALID_OP"
)

// Error describes why an op could not be applied.
//
// Index is the zero-based position of the failing op in the pipeline, or -1
// when the error comes from a bare locator call outside a pipeline.
type Error struct {
	Code    ErrorCode
	Index   int
	Op      string // op name, empty if the op was not named
	Anchor  string // the anchor text that failed to resolve
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s (anchor=%q)", e.Code, e.Message, e.Anchor)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: op %d (%s): %s (anchor=%q)", e.Code, e.Index, e.Op, e.Message, e.Anchor)
	}
	return fmt.Sprintf("%s: op %d: %s (anchor=%q)", e.Code, e.Index, e.Message, e.Anchor)
}

// withOp returns a copy of e tagged with the failing op's position.
func (e *Error) withOp(index int, name string) *Error {
	c := *e
	c.Index = index
	c.Op = name
	return &c
}

// CodeOf returns the error code of a patch error, or "" if err is not one.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsNotFound returns true if err is an ANCHOR_NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeAnchorNotFound
}

// IsAmbiguous returns true if err is an ANCHOR_AMBIGUOUS error.
func IsAmbiguous(err error) bool {
	return CodeOf(err) == ErrCodeAnchorAmbiguous
}

// IsSecondaryPrecedesPrimary returns true if err is a
// SECONDARY_ANCHOR_PRECEDES_PRIMARY error.
func IsSecondaryPrecedesPrimary(err error) bool {
	return CodeOf(err) == ErrCodeSecondaryPrecedesPrimary
}

func notFound(anchor string) *Error {
	return &Error{
		Code:    ErrCodeAnchorNotFound,
		Index:   -1,
		Anchor:  anchor,
		Message: "anchor not found in document",
	}
}

func ambiguous(anchor string, first, second int) *Error {
	return &Error{
		Code:    ErrCodeAnchorAmbiguous,
		Index:   -1,
		Anchor:  anchor,
		Message: fmt.Sprintf("anchor matches more than once (offsets %d and %d)", first, second),
	}
}

func invalidOp(anchor, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidOp,
		Index:   -1,
		Anchor:  anchor,
		Message: message,
	}
}
