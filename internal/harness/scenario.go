package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/anchorpatch/internal/patch"
	"github.com/roach88/anchorpatch/internal/plan"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the starting document.
	Document string `yaml:"document,omitempty"`

	// DocumentFile is read into Document at load time.
	DocumentFile string `yaml:"document_file,omitempty"`

	// Ops are applied in order as one transaction.
	Ops []plan.OpSpec `yaml:"ops"`

	// Expect states the outcome of the pipeline.
	Expect Expect `yaml:"expect"`

	// Assertions are extra checks against the final document.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// path is the file the scenario was loaded from.
	path string
}

// Expect describes the required outcome. With no Error, the pipeline must
// succeed; with no Document, the result is only checked by assertions and
// golden files.
type Expect struct {
	Document *string      `yaml:"document,omitempty"`
	Error    *ExpectError `yaml:"error,omitempty"`
}

// ExpectError is the failure a scenario requires.
type ExpectError struct {
	Code  patch.ErrorCode `yaml:"code"`
	Index int             `yaml:"index"`
}

// Assertion checks the final document.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Text is used by contains, absent and count.
	Text string `yaml:"text,omitempty"`

	// Texts is the expected order (order).
	Texts []string `yaml:"texts,omitempty"`

	// Count is the expected number of occurrences (count).
	Count int `yaml:"count,omitempty"`

	// Op is an op name (skipped).
	Op string `yaml:"op,omitempty"`
}

// Assertion type constants.
const (
	AssertContains = "contains"
	AssertAbsent   = "absent"
	AssertCount    = "count"
	AssertOrder    = "order"
	AssertSkipped  = "skipped"
)

// Path returns the file the scenario was loaded from, if any.
func (s *Scenario) Path() string {
	return s.path
}

// Plan returns the scenario's ops as a plan targeting the locator
// "document".
func (s *Scenario) Plan() *plan.Plan {
	return &plan.Plan{
		Name:        s.Name,
		Description: s.Description,
		Document:    scenarioLocator,
		Ops:         append([]plan.OpSpec(nil), s.Ops...),
		Path:        s.path,
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.path = path

	if err := scenario.resolveFiles(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// resolveFiles inlines document_file and payload_file contents.
func (s *Scenario) resolveFiles() error {
	baseDir := filepath.Dir(s.path)

	if s.DocumentFile != "" {
		if s.Document != "" {
			return errors.New("document and document_file are mutually exclusive")
		}
		path := s.DocumentFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("document_file: %w", err)
		}
		s.Document = string(data)
		s.DocumentFile = ""
	}

	p := s.Plan()
	if err := p.ResolvePayloads(); err != nil {
		return err
	}
	s.Ops = p.Ops
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.DocumentFile != "" {
		return fmt.Errorf("document_file must be resolved before validation")
	}

	// Op rules are the plan rules.
	if errs := plan.Validate(s.Plan()); len(errs) > 0 {
		return errs
	}

	if s.Expect.Error != nil {
		if s.Expect.Error.Code == "" {
			return fmt.Errorf("expect.error: code is required")
		}
		if s.Expect.Error.Index < 0 || s.Expect.Error.Index >= len(s.Ops) {
			return fmt.Errorf("expect.error: index %d out of range for %d ops", s.Expect.Error.Index, len(s.Ops))
		}
		if s.Expect.Document != nil {
			return fmt.Errorf("expect: document and error are mutually exclusive")
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertContains, AssertAbsent:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertOrder:
		if len(a.Texts) < 2 {
			return fmt.Errorf("assertions[%d]: order needs at least two texts", index)
		}
	case AssertSkipped:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for skipped", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
