package patch

import "strings"

// Locate returns the byte offset of the first occurrence of anchor in doc.
// Matching is exact; the anchor must be non-empty.
func Locate(doc, anchor string) (int, error) {
	return LocateFrom(doc, anchor, 0)
}

// LocateUnique is like Locate but fails with ANCHOR_AMBIGUOUS when anchor
// occurs more than once. Overlapping occurrences count: "AA" contains "A"
// twice, and "AAA" contains "AA" twice.
func LocateUnique(doc, anchor string) (int, error) {
	first, err := Locate(doc, anchor)
	if err != nil {
		return -1, err
	}
	if next := strings.Index(doc[first+1:], anchor); next >= 0 {
		return -1, ambiguous(anchor, first, first+1+next)
	}
	return first, nil
}

// LocateFrom returns the byte offset of the first occurrence of anchor at or
// after byte offset from.
func LocateFrom(doc, anchor string, from int) (int, error) {
	if anchor == "" {
		return -1, invalidOp(anchor, "anchor must be non-empty")
	}
	if from < 0 || from > len(doc) {
		return -1, notFound(anchor)
	}
	idx := strings.Index(doc[from:], anchor)
	if idx < 0 {
		return -1, notFound(anchor)
	}
	return from + idx, nil
}
