package x12

import (
	"bytes"

	"github.com/oarkflow/edi/pkg/diag"
)

// Parser turns an X12 byte stream into the canonical envelope tree.
// It covers C1-C3: delimiter detection, tokenization, and envelope
// assembly. Transaction projection and rule evaluation happen above.
type Parser struct {
	col *diag.Collector
}

func NewParser(col *diag.Collector) *Parser {
	return &Parser{col: col}
}

// Name identifies the parser.
func (p *Parser) Name() string { return "x12" }

// Detect checks whether the data looks like an X12 interchange.
func (p *Parser) Detect(data []byte) bool {
	return len(data) >= isaHeaderLength && bytes.HasPrefix(data, []byte("ISA"))
}

// Parse assembles the full envelope tree. The only failure it returns is
// ErrInvalidHeader; every other problem is recorded in the collector and
// a partial tree is still produced.
func (p *Parser) Parse(data []byte) (*Document, error) {
	delims, err := DetectDelimiters(data)
	if err != nil {
		return nil, err
	}
	segments := NewTokenizer(data, delims, p.col).All()
	doc := NewAssembler(p.col).Assemble(segments)
	doc.Delimiters = delims
	return doc, nil
}
