package plan

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSrc string

// Extensions lists the plan file extensions LoadFile understands.
var Extensions = []string{".yaml", ".yml", ".cue"}

// LoadFile reads, validates and resolves a plan file. The format is chosen by
// extension. Payload files are read and inlined, so the returned plan needs no
// further filesystem access except for its document.
//
// Structural problems are returned as Errors.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p *Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = ParseYAML(data, path)
	case ".cue":
		p, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported plan file %s: extension must be one of %v", path, Extensions)
	}
	if err != nil {
		return nil, err
	}

	if err := p.ResolvePayloads(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseYAML decodes and validates a YAML plan. Unknown fields are rejected.
func ParseYAML(data []byte, path string) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "anchors:" vs "anchor:"
	if err := decoder.Decode(&p); err != nil {
		return nil, Errors{{Field: "yaml", Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}
	p.Path = path

	if errs := Validate(&p); len(errs) > 0 {
		return nil, errs
	}
	return &p, nil
}

// ParseCUE compiles a CUE plan, checks it against the #Plan schema and
// validates it. Errors carry CUE source positions where available.
func ParseCUE(data []byte, path string) (*Plan, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("plan_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}

	raw := ctx.CompileBytes(data, cue.Filename(path))
	if err := raw.Err(); err != nil {
		return nil, Errors{formatCUEError(err)}
	}

	v := schema.LookupPath(cue.ParsePath("#Plan")).Unify(raw)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, Errors{formatCUEError(err)}
	}

	var p Plan
	if err := v.Decode(&p); err != nil {
		return nil, Errors{formatCUEError(err)}
	}
	p.Path = path

	if errs := Validate(&p); len(errs) > 0 {
		attachPositions(errs, raw)
		return nil, errs
	}
	return &p, nil
}

// attachPositions gives op-level errors the position of their op in the
// CUE source.
func attachPositions(errs Errors, v cue.Value) {
	iter, err := v.LookupPath(cue.ParsePath("ops")).List()
	if err != nil {
		return
	}
	var positions []token.Pos
	for iter.Next() {
		positions = append(positions, iter.Value().Pos())
	}
	for _, e := range errs {
		var idx int
		if _, err := fmt.Sscanf(e.Field, "ops[%d]", &idx); err != nil {
			continue
		}
		if idx >= 0 && idx < len(positions) && !e.Pos.IsValid() {
			e.Pos = positions[idx]
		}
	}
}

// ResolvePayloads reads every payload_file, relative to BaseDir, into
// Payload. All unreadable files are reported together.
func (p *Plan) ResolvePayloads() error {
	var errs Errors
	for i := range p.Ops {
		spec := &p.Ops[i]
		if spec.PayloadFile == "" {
			continue
		}
		path := spec.PayloadFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.BaseDir(), path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &PlanError{
				Field:   fmt.Sprintf("ops[%d].payload_file", i),
				Message: fmt.Sprintf("reading payload: %v", err),
			})
			continue
		}
		spec.Payload = string(data)
		spec.PayloadFile = ""
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) *PlanError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &PlanError{Field: "cue", Message: err.Error()}
	}

	// Report the first error, with its position if it has one.
	first := errs[0]
	pe := &PlanError{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		pe.Pos = positions[0]
	}
	return pe
}
