package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ElementType classifies a structural element.
type ElementType string

// Available element types.
const (
	ElementClass     ElementType = "class"
	ElementFunction  ElementType = "function"
	ElementHeader    ElementType = "header"
	ElementPage      ElementType = "page"
	ElementParagraph ElementType = "paragraph"

	// ElementDocument is the synthetic whole-document element. Extractors never
	// produce it; the citation indexer creates it for empty structures and for
	// demoted elements.
	ElementDocument ElementType = "document"
)

// IsValid returns true if the element type is recognised.
func (t ElementType) IsValid() bool {
	switch t {
	case ElementClass, ElementFunction, ElementHeader, ElementPage, ElementParagraph, ElementDocument:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t ElementType) String() string {
	return string(t)
}

// Format identifies how a document's citations are rendered.
type Format string

// Available citation formats.
const (
	FormatCode     Format = "code"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatGeneric  Format = "generic"
)

// IsValid returns true if the format is recognised.
func (f Format) IsValid() bool {
	switch f {
	case FormatCode, FormatMarkdown, FormatPDF, FormatGeneric:
		return true
	default:
		return false
	}
}

// StructuralElement is one named, positioned unit of a document's structure.
// Line numbers are 1-based and inclusive.
type StructuralElement struct {
	// Type is the element kind.
	Type ElementType `json:"type" yaml:"type"`

	// Name is the class/function name, heading text or page label.
	Name string `json:"name" yaml:"name"`

	// StartLine is the first line of the element, if known.
	StartLine *int `json:"start_line,omitempty" yaml:"start_line,omitempty"`

	// EndLine is the last line of the element, if known.
	EndLine *int `json:"end_line,omitempty" yaml:"end_line,omitempty"`

	// PageNumber is the 1-based page, for paginated formats.
	PageNumber *int `json:"page_number,omitempty" yaml:"page_number,omitempty"`

	// Level is the header depth (1 for "#"). Zero for non-headers.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`

	// ContentHash fingerprints the element's text.
	ContentHash string `json:"content_hash" yaml:"content_hash"`
}

// HasLines reports whether the element carries a line range.
func (e StructuralElement) HasLines() bool {
	return e.StartLine != nil
}

// HasPage reports whether the element carries a page number.
func (e StructuralElement) HasPage() bool {
	return e.PageNumber != nil
}

// LineRange returns the inclusive line range. A missing end line is
// treated as a single-line element.
func (e StructuralElement) LineRange() (start, end int) {
	if e.StartLine == nil {
		return 0, 0
	}
	start = *e.StartLine
	end = start
	if e.EndLine != nil {
		end = *e.EndLine
	}
	return start, end
}

// Position returns the line or page used to address the element.
func (e StructuralElement) Position() int {
	switch {
	case e.StartLine != nil:
		return *e.StartLine
	case e.PageNumber != nil:
		return *e.PageNumber
	default:
		return 0
	}
}

// StructureModel is a document's structural elements, flattened into
// document order. Nested headers appear in the order they occur and keep
// their depth in Level.
type StructureModel struct {
	// DocID identifies the document the structure was extracted from.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// Format is the citation format the extractor recommends.
	Format Format `json:"format" yaml:"format"`

	// Elements are the structural elements in document order.
	Elements []StructuralElement `json:"elements" yaml:"elements"`
}

// IsEmpty reports whether the model has no elements.
func (s *StructureModel) IsEmpty() bool {
	return s == nil || len(s.Elements) == 0
}

// ContentHashes returns the element hashes in document order.
func (s *StructureModel) ContentHashes() []string {
	if s == nil {
		return nil
	}
	hashes := make([]string, len(s.Elements))
	for i, el := range s.Elements {
		hashes[i] = el.ContentHash
	}
	return hashes
}

// HashContent returns the hex sha256 fingerprint used for element and
// document content hashes.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IntPtr returns a pointer to v. Extractors use it to fill optional positions.
func IntPtr(v int) *int {
	return &v
}
