package patch

import "fmt"

// Placement determines where, relative to its anchors, an op splices its payload.
type Placement string

const (
	// PlaceBefore inserts the payload immediately before the anchor.
	PlaceBefore Placement = "before"

	// PlaceAfter inserts the payload immediately after the anchor.
	PlaceAfter Placement = "after"

	// PlaceBetween inserts the payload immediately before the first
	// occurrence of the secondary anchor found after the primary anchor.
	PlaceBetween Placement = "between"

	// PlaceReplace replaces the anchor text with the payload.
	PlaceReplace Placement = "replace"

	// PlaceReplaceBetween replaces the text from the start of the primary
	// anchor up to (not including) the secondary anchor.
	PlaceReplaceBetween Placement = "replace_between"
)

// Placements lists every supported placement in declaration order.
var Placements = []Placement{PlaceBefore, PlaceAfter, PlaceBetween, PlaceReplace, PlaceReplaceBetween}

// ParsePlacement converts a plan-file placement name to a Placement.
func ParsePlacement(s string) (Placement, error) {
	for _, p := range Placements {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown placement %q: must be one of %v", s, Placements)
}

// NeedsSecondary reports whether the placement is resolved against two anchors.
func (p Placement) NeedsSecondary() bool {
	return p == PlaceBetween || p == PlaceReplaceBetween
}

// Op is one declared edit. Op values are immutable: the modifier methods
// return modified copies.
type Op struct {
	name       string
	placement  Placement
	anchor     string
	secondary  string
	payload    string
	firstMatch bool
	guard      string
}

// Before returns an op inserting payload immediately before anchor.
func Before(anchor, payload string) Op {
	return Op{placement: PlaceBefore, anchor: anchor, payload: payload}
}

// After returns an op inserting payload immediately after anchor.
func After(anchor, payload string) Op {
	return Op{placement: PlaceAfter, anchor: anchor, payload: payload}
}

// Between returns an op inserting payload before the first occurrence of
// secondary that lies after primary.
func Between(primary, secondary, payload string) Op {
	return Op{placement: PlaceBetween, anchor: primary, secondary: secondary, payload: payload}
}

// Replace returns an op replacing the anchor text with payload.
func Replace(anchor, payload string) Op {
	return Op{placement: PlaceReplace, anchor: anchor, payload: payload}
}

// ReplaceBetween returns an op replacing everything from the start of primary
// up to the following secondary with payload. The secondary anchor is kept.
func ReplaceBetween(primary, secondary, payload string) Op {
	return Op{placement: PlaceReplaceBetween, anchor: primary, secondary: secondary, payload: payload}
}

// New builds an op from its parts. Unlike the placement constructors it
// accepts any combination; Validate reports whether the result is usable.
func New(placement Placement, anchor, secondary, payload string) Op {
	return Op{placement: placement, anchor: anchor, secondary: secondary, payload: payload}
}

// Named returns a copy of the op carrying a name used in errors and reports.
func (o Op) Named(name string) Op {
	o.name = name
	return o
}

// FirstMatch returns a copy of the op that resolves its primary anchor to the
// first occurrence instead of requiring a unique match.
func (o Op) FirstMatch() Op {
	o.firstMatch = true
	return o
}

// SkipIfPresent returns a copy of the op that is skipped when the document
// already contains guard. This makes re-running a plan against a document it
// has already patched a no-op for that op.
func (o Op) SkipIfPresent(guard string) Op {
	o.guard = guard
	return o
}

func (o Op) Name() string         { return o.name }
func (o Op) Placement() Placement { return o.placement }
func (o Op) Anchor() string       { return o.anchor }
func (o Op) Secondary() string    { return o.secondary }
func (o Op) Payload() string      { return o.payload }
func (o Op) IsFirstMatch() bool   { return o.firstMatch }
func (o Op) Guard() string        { return o.guard }

// Validate checks the op's shape without looking at any document.
func (o Op) Validate() error {
	if o.anchor == "" {
		return invalidOp(o.anchor, "anchor must be non-empty")
	}
	switch o.placement {
	case PlaceBefore, PlaceAfter, PlaceReplace:
		if o.secondary != "" {
			return invalidOp(o.anchor, fmt.Sprintf("placement %q does not take a secondary anchor", o.placement))
		}
	case PlaceBetween, PlaceReplaceBetween:
		if o.secondary == "" {
			return invalidOp(o.anchor, fmt.Sprintf("placement %q requires a secondary anchor", o.placement))
		}
	default:
		return invalidOp(o.anchor, fmt.Sprintf("unknown placement %q", o.placement))
	}
	return nil
}

// Span is the byte range [Start, End) of a document an op replaces with its
// payload. Start == End for pure insertions.
type Span struct {
	Start int
	End   int
}

// Resolve locates the op's anchors in doc and returns the span its payload
// replaces.
func (o Op) Resolve(doc string) (Span, error) {
	if err := o.Validate(); err != nil {
		return Span{}, err
	}

	var (
		start int
		err   error
	)
	if o.firstMatch {
		start, err = Locate(doc, o.anchor)
	} else {
		start, err = LocateUnique(doc, o.anchor)
	}
	if err != nil {
		return Span{}, err
	}

	switch o.placement {
	case PlaceBefore:
		return Span{Start: start, End: start}, nil
	case PlaceAfter:
		end := start + len(o.anchor)
		return Span{Start: end, End: end}, nil
	case PlaceReplace:
		return Span{Start: start, End: start + len(o.anchor)}, nil
	}

	// Two-anchor placements: the secondary is the next occurrence found
	// searching from the primary's start.
	second, err := LocateFrom(doc, o.secondary, start)
	if err != nil {
		return Span{}, err
	}
	if second <= start {
		return Span{}, &Error{
			Code:    ErrCodeSecondaryPrecedesPrimary,
			Index:   -1,
			Anchor:  o.secondary,
			Message: fmt.Sprintf("secondary anchor at offset %d does not follow primary anchor at offset %d", second, start),
		}
	}
	if o.placement == PlaceReplaceBetween {
		return Span{Start: start, End: second}, nil
	}
	return Span{Start: second, End: second}, nil
}

// splice returns doc with span replaced by payload.
func splice(doc string, span Span, payload string) string {
	return doc[:span.Start] + payload + doc[span.End:]
}
