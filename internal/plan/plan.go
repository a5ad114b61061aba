// Package plan loads patch plans: declarative files naming one target
// document and the ordered ops to apply to it.
//
// Plans are written in YAML or CUE:
//
//	name: mobile-layout
//	document: app/page.tsx
//	encoding: utf-8
//	ops:
//	  - name: error-block
//	    placement: before
//	    anchor: '          <div className="lg:hidden space-y-4">'
//	    payload_file: fragments/error-block.tsx
//	    skip_if_present: "{error && ("
//
// Relative paths (document, payload_file) are resolved against the directory
// containing the plan file.
package plan

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/roach88/anchorpatch/internal/digest"
	"github.com/roach88/anchorpatch/internal/patch"
)

// Plan is one transaction: every op is applied to Document in order, and the
// document is saved only if all of them succeed.
type Plan struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Document    string   `yaml:"document" json:"document"`
	Encoding    string   `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Ops         []OpSpec `yaml:"ops" json:"ops"`

	// Path is the file the plan was loaded from, empty for in-memory plans.
	Path string `yaml:"-" json:"-"`
}

// OpSpec is the file representation of a patch.Op.
type OpSpec struct {
	Name          string `yaml:"name,omitempty" json:"name,omitempty"`
	Placement     string `yaml:"placement" json:"placement"`
	Anchor        string `yaml:"anchor" json:"anchor"`
	Secondary     string `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Payload       string `yaml:"payload,omitempty" json:"payload,omitempty"`
	PayloadFile   string `yaml:"payload_file,omitempty" json:"payload_file,omitempty"`
	FirstMatch    bool   `yaml:"first_match,omitempty" json:"first_match,omitempty"`
	SkipIfPresent string `yaml:"skip_if_present,omitempty" json:"skip_if_present,omitempty"`
}

// BaseDir returns the directory relative paths in the plan resolve against.
func (p *Plan) BaseDir() string {
	if p.Path == "" {
		return ""
	}
	return filepath.Dir(p.Path)
}

// Op converts the spec to a patch.Op. PayloadFile must already have been
// resolved into Payload.
func (s OpSpec) Op() (patch.Op, error) {
	placement, err := patch.ParsePlacement(s.Placement)
	if err != nil {
		return patch.Op{}, err
	}
	op := patch.New(placement, s.Anchor, s.Secondary, s.Payload).Named(s.Name)
	if s.FirstMatch {
		op = op.FirstMatch()
	}
	if s.SkipIfPresent != "" {
		op = op.SkipIfPresent(s.SkipIfPresent)
	}
	if err := op.Validate(); err != nil {
		return patch.Op{}, err
	}
	return op, nil
}

// PatchOps converts every op spec, failing on the first invalid one.
func (p *Plan) PatchOps() ([]patch.Op, error) {
	ops := make([]patch.Op, 0, len(p.Ops))
	for i, spec := range p.Ops {
		op, err := spec.Op()
		if err != nil {
			return nil, fmt.Errorf("ops[%d]: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Fingerprint identifies the plan's op list. Two plans with the same ops in
// the same order share a fingerprint regardless of name or file format.
func (p *Plan) Fingerprint() (string, error) {
	data, err := json.Marshal(p.Ops)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return digest.Plan(data), nil
}
