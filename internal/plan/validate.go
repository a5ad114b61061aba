package plan

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/anchorpatch/internal/docstore"
	"github.com/roach88/anchorpatch/internal/patch"
)

// PlanError describes one problem in a plan file.
type PlanError struct {
	Field   string // e.g. "ops[2].anchor"
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *PlanError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every problem found in a plan.
type Errors []*PlanError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a plan's structure without touching its document.
// Returns nil if the plan is valid.
func Validate(p *Plan) Errors {
	var errs Errors
	add := func(field, format string, args ...any) {
		errs = append(errs, &PlanError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Name == "" {
		add("name", "name is required")
	}
	if p.Document == "" {
		add("document", "document is required")
	}
	if _, err := docstore.ParseEncoding(p.Encoding); err != nil {
		add("encoding", "%v", err)
	}
	if len(p.Ops) == 0 {
		add("ops", "ops list is required and must be non-empty")
	}

	names := make(map[string]int)
	for i, spec := range p.Ops {
		field := fmt.Sprintf("ops[%d]", i)

		if spec.Name != "" {
			if prev, dup := names[spec.Name]; dup {
				add(field+".name", "duplicate op name %q (also ops[%d])", spec.Name, prev)
			} else {
				names[spec.Name] = i
			}
		}

		placement, err := patch.ParsePlacement(spec.Placement)
		if err != nil {
			add(field+".placement", "%v", err)
			continue
		}
		if spec.Anchor == "" {
			add(field+".anchor", "anchor is required and must be non-empty")
		}
		if placement.NeedsSecondary() && spec.Secondary == "" {
			add(field+".secondary", "secondary anchor is required for placement %q", placement)
		}
		if !placement.NeedsSecondary() && spec.Secondary != "" {
			add(field+".secondary", "placement %q does not take a secondary anchor", placement)
		}
		if spec.Payload != "" && spec.PayloadFile != "" {
			add(field+".payload", "payload and payload_file are mutually exclusive")
		}
	}

	return errs
}
