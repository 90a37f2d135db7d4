package x12

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrInvalidHeader is the only fatal parse failure: the input cannot be
// interpreted as X12 at all.
var ErrInvalidHeader = errors.New("x12: invalid interchange header")

// isaHeaderLength is the fixed width of an ISA segment including its
// terminator.
const isaHeaderLength = 106

// Delimiters holds the separators discovered from the interchange
// header. They are dynamic per document.
type Delimiters struct {
	Element    byte
	Component  byte
	Repetition byte
	Segment    byte
}

func (d Delimiters) String() string {
	return fmt.Sprintf("element=%q component=%q repetition=%q segment=%q",
		d.Element, d.Component, d.Repetition, d.Segment)
}

// DetectDelimiters inspects the fixed-width ISA header. The element
// separator sits at offset 3, the component separator at offset 104 and
// the segment terminator at offset 105. ISA11 (offset 82) carries the
// repetition separator in 5010 interchanges; alphanumeric values there
// are a standards identifier, in which case the component separator is
// reused.
func DetectDelimiters(data []byte) (Delimiters, error) {
	if len(data) < isaHeaderLength {
		return Delimiters{}, fmt.Errorf("%w: input is %d bytes, ISA header requires %d", ErrInvalidHeader, len(data), isaHeaderLength)
	}
	if !bytes.HasPrefix(data, []byte("ISA")) {
		return Delimiters{}, fmt.Errorf("%w: input does not begin with ISA", ErrInvalidHeader)
	}
	d := Delimiters{
		Element:   data[3],
		Component: data[104],
		Segment:   data[105],
	}
	if rep := data[82]; !isAlphanumeric(rep) {
		d.Repetition = rep
	} else {
		d.Repetition = d.Component
	}
	return d, nil
}

func isAlphanumeric(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
