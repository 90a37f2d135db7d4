package x12

import (
	"strconv"
	"strings"

	"github.com/oarkflow/edi/pkg/diag"
)

// Tokenizer produces segments lazily from a byte buffer using the
// delimiters discovered by DetectDelimiters. Release/escape characters
// are not part of the supported dialect: a literal delimiter embedded in
// data is always treated as a separator.
type Tokenizer struct {
	data   string
	delims Delimiters
	col    *diag.Collector
	pos    int
}

func NewTokenizer(data []byte, delims Delimiters, col *diag.Collector) *Tokenizer {
	return &Tokenizer{data: string(data), delims: delims, col: col}
}

// Next returns the next segment in document order. The second return is
// false once the input is exhausted. Empty segments (two consecutive
// terminators) are skipped silently.
func (t *Tokenizer) Next() (Segment, bool) {
	for t.pos < len(t.data) {
		end := strings.IndexByte(t.data[t.pos:], t.delims.Segment)
		var raw string
		if end < 0 {
			raw = t.data[t.pos:]
			t.pos = len(t.data)
		} else {
			raw = t.data[t.pos : t.pos+end]
			t.pos += end + 1
		}
		raw = strings.Trim(raw, "\r\n ")
		if raw == "" {
			continue
		}
		return t.split(raw), true
	}
	return Segment{}, false
}

// All drains the tokenizer. The envelope assembler needs the complete
// segment sequence to enforce trailer counts.
func (t *Tokenizer) All() []Segment {
	var segs []Segment
	for {
		seg, ok := t.Next()
		if !ok {
			return segs
		}
		segs = append(segs, seg)
	}
}

func (t *Tokenizer) split(raw string) Segment {
	parts := strings.Split(raw, string(t.delims.Element))
	id := parts[0]
	if !validSegmentID(id) {
		t.col.Add(diag.Diagnostic{
			Code:     "MALFORMED_SEGMENT",
			Severity: diag.SeverityWarning,
			Message:  "segment id " + strconv.Quote(id) + " is not 2-3 uppercase letters or digits",
			Value:    id,
		})
	}
	seg := Segment{ID: id, Elements: make([]Element, 0, len(parts)-1)}
	for _, p := range parts[1:] {
		seg.Elements = append(seg.Elements, t.element(p))
	}
	return seg
}

func (t *Tokenizer) element(raw string) Element {
	e := Element{Value: raw}
	first := raw
	if t.delims.Repetition != t.delims.Component && strings.IndexByte(raw, t.delims.Repetition) >= 0 {
		e.Repeats = strings.Split(raw, string(t.delims.Repetition))
		first = e.Repeats[0]
	}
	e.Components = strings.Split(first, string(t.delims.Component))
	return e
}
