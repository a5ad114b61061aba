// Package harness runs conformance scenarios for anchor patch pipelines.
//
// A scenario pairs a starting document with a list of ops and states what
// must happen: the exact resulting document, or the error code and op index
// the pipeline must fail with.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: error_block
//	description: "Error banner is inserted above the mobile layout"
//	document_file: fixtures/page.tsx
//	ops:
//	  - name: error-block
//	    placement: before
//	    anchor: '<div className="lg:hidden space-y-4">'
//	    payload_file: fixtures/error-block.tsx
//	expect:
//	  document: |
//	    ...
//	assertions:
//	  - type: contains
//	    text: "{error && ("
//
// document and document_file are mutually exclusive. Op fields are the same
// as in plan files; payload_file and document_file resolve against the
// scenario's directory.
//
// # Assertion Types
//
//   - contains: text occurs in the final document
//   - absent: text does not occur in the final document
//   - count: text occurs exactly count times
//   - order: texts occur in the given order
//   - skipped: the named op was skipped by its skip_if_present guard
//
// # Isolation
//
// Every scenario runs through the real runner against a fresh in-memory
// document store and an in-memory journal, with a fixed run ID. On failure
// the harness also checks that the store was never written and that the
// journal recorded the failing op.
package harness
