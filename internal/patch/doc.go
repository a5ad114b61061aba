// Package patch implements the anchor-based text patch engine.
//
// A document is an opaque string. Edits are described by immutable Op values
// that splice a payload relative to one or two literal anchors, and a Pipeline
// applies a list of ops as a strict left-to-right fold: each op is resolved
// against the document produced by the ops before it.
//
// ARCHITECTURE:
//
// AnchorLocator:
// Locate, LocateUnique and LocateFrom perform exact, byte-for-byte substring
// search. No whitespace, case or Unicode normalization is ever applied.
//
// Op:
// An op carries its placement (before, after, between, replace,
// replace_between), its anchors and its payload. Ops require a unique primary
// anchor unless FirstMatch is set.
//
// Pipeline:
// Apply is all-or-nothing. The first failing op aborts the run and the
// returned *Error names its zero-based index, anchor and error code. No
// partially patched document is ever returned, so callers that persist only
// successful results never write a half-applied document.
//
// CRITICAL PATTERNS:
//
// Offsets are byte offsets into the Go string. Anchors and payloads are
// compared and spliced as raw bytes.
//
// The package performs no I/O. Loading and saving belong to docstore, and the
// runner package is the only place that decides when to save.
package patch
