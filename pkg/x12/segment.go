package x12

import "strings"

// Element is one field of a segment. Components holds the sub-element
// view split on the component separator; Repeats carries the raw repeat
// values when the repetition separator occurred inside the element, with
// the component view taken from the first repeat. Zero-length components
// are distinct from absent ones.
type Element struct {
	Value      string
	Components []string
	Repeats    []string
}

// Component returns the i-th (zero-based) sub-element component, or ""
// when absent.
func (e Element) Component(i int) string {
	if i < 0 || i >= len(e.Components) {
		return ""
	}
	return e.Components[i]
}

// Segment is one logical X12 record. Immutable after tokenization.
type Segment struct {
	ID       string
	Elements []Element
}

// Get returns element i using X12 numbering (BPR02 is Get(2)), or ""
// when the element is absent.
func (s Segment) Get(i int) string {
	if i < 1 || i > len(s.Elements) {
		return ""
	}
	return s.Elements[i-1].Value
}

// GetTrimmed returns element i with surrounding whitespace removed.
// Fixed-width envelope elements (ISA sender/receiver ids) are padded
// with spaces on the wire.
func (s Segment) GetTrimmed(i int) string {
	return strings.TrimSpace(s.Get(i))
}

// Composite returns the component view of element i, or nil when absent.
func (s Segment) Composite(i int) []string {
	if i < 1 || i > len(s.Elements) {
		return nil
	}
	return s.Elements[i-1].Components
}

// Component returns component j (zero-based) of element i.
func (s Segment) Component(i, j int) string {
	if i < 1 || i > len(s.Elements) {
		return ""
	}
	return s.Elements[i-1].Component(j)
}

// Len reports the number of elements following the segment id.
func (s Segment) Len() int { return len(s.Elements) }

// ToMap serializes the segment for the raw-segment fallback of unknown
// transaction codes.
func (s Segment) ToMap() map[string]any {
	elements := make([][]string, 0, len(s.Elements))
	for _, e := range s.Elements {
		elements = append(elements, e.Components)
	}
	return map[string]any{"id": s.ID, "elements": elements}
}

// validSegmentID reports whether id is 2-3 uppercase letters or digits.
func validSegmentID(id string) bool {
	if len(id) < 2 || len(id) > 3 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
