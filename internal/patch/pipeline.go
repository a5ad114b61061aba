package patch

import (
	"io"
	"log/slog"
	"strings"
)

// State is the lifecycle state of a single pipeline run.
type State int

const (
	StatePending State = iota
	StateApplying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApplying:
		return "applying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transition is reported to observers each time a run changes state.
// Index is the op being applied when entering StateApplying or StateFailed,
// and -1 otherwise.
type Transition struct {
	From  State
	To    State
	Index int
}

// OpReport records how one op was applied.
type OpReport struct {
	Index     int       `json:"index"`
	Name      string    `json:"name,omitempty"`
	Placement Placement `json:"placement"`
	Anchor    string    `json:"anchor"`
	Start     int       `json:"start"` // byte offset in the document the op was applied to
	End       int       `json:"end"`
	Skipped   bool      `json:"skipped,omitempty"`
}

// Result is the outcome of a successful run.
type Result struct {
	Document string
	Ops      []OpReport
}

// Applied returns the number of ops that changed the document.
func (r *Result) Applied() int {
	n := 0
	for _, op := range r.Ops {
		if !op.Skipped {
			n++
		}
	}
	return n
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-op debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers a callback for state transitions.
func WithObserver(fn func(Transition)) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, fn)
	}
}

// Pipeline is an ordered list of ops. It holds no state between runs, so the
// same pipeline may be applied any number of times.
type Pipeline struct {
	ops       []Op
	logger    *slog.Logger
	observers []func(Transition)
}

// NewPipeline creates a pipeline applying ops in the given order.
// The slice is copied.
func NewPipeline(ops []Op, opts ...Option) *Pipeline {
	p := &Pipeline{
		ops:    append([]Op(nil), ops...),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply is shorthand for NewPipeline(ops).Apply(doc).
func Apply(doc string, ops ...Op) (*Result, error) {
	return NewPipeline(ops).Apply(doc)
}

// Len returns the number of ops in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.ops)
}

// Ops returns a copy of the pipeline's ops.
func (p *Pipeline) Ops() []Op {
	return append([]Op(nil), p.ops...)
}

// Apply folds the ops over doc. On failure it returns a nil result and an
// *Error tagged with the failing op's index; no intermediate document escapes.
func (p *Pipeline) Apply(doc string) (*Result, error) {
	state := StatePending
	moveTo := func(next State, index int) {
		t := Transition{From: state, To: next, Index: index}
		state = next
		for _, fn := range p.observers {
			fn(t)
		}
	}

	current := doc
	reports := make([]OpReport, 0, len(p.ops))

	for i, op := range p.ops {
		moveTo(StateApplying, i)

		report := OpReport{
			Index:     i,
			Name:      op.name,
			Placement: op.placement,
			Anchor:    op.anchor,
		}

		if op.guard != "" && strings.Contains(current, op.guard) {
			report.Skipped = true
			reports = append(reports, report)
			p.logger.Debug("op skipped, guard present", "index", i, "name", op.name)
			continue
		}

		span, err := op.Resolve(current)
		if err != nil {
			var pe *Error
			if e, ok := err.(*Error); ok {
				pe = e.withOp(i, op.name)
			} else {
				pe = &Error{Code: ErrCodeInvalidOp, Index: i, Op: op.name, Anchor: op.anchor, Message: err.Error()}
			}
			p.logger.Debug("op failed", "index", i, "name", op.name, "code", string(pe.Code))
			moveTo(StateFailed, i)
			return nil, pe
		}

		current = splice(current, span, op.payload)
		report.Start = span.Start
		report.End = span.End
		reports = append(reports, report)

		p.logger.Debug("op applied",
			"index", i,
			"name", op.name,
			"placement", string(op.placement),
			"start", span.Start,
			"end", span.End,
			"payload_bytes", len(op.payload),
		)
	}

	moveTo(StateSucceeded, -1)
	return &Result{Document: current, Ops: reports}, nil
}
