package domain

import (
	"fmt"
	"strings"
)

// Metadata defaults applied when a document does not supply them.
const (
	DefaultAuthor  = "Unknown"
	DefaultVersion = "1.0"
)

// DocumentMetadata is the basic descriptive metadata supplied with a document.
type DocumentMetadata struct {
	// Title is the human-readable title. Defaults to the file stem.
	Title string `json:"title" yaml:"title"`

	// Author is the document author.
	Author string `json:"author" yaml:"author"`

	// Version is the document version label.
	Version string `json:"version" yaml:"version"`

	// RepositoryPath is the path of the source file inside its repository.
	RepositoryPath string `json:"repository_path" yaml:"repository_path"`

	// Format overrides the citation format inferred from the structure.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
}

// CitationAnchor is a citation-addressable pointer to one structural element.
type CitationAnchor struct {
	// CitationKey is unique within the document and deterministic.
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	// Element is the anchored structural element.
	Element StructuralElement `json:"element" yaml:"element"`

	// Ordinal is the anchor's position in document order, from zero.
	Ordinal int `json:"ordinal" yaml:"ordinal"`
}

// CitationRecord holds every anchor of one document version.
// Records are immutable once produced; a content change regenerates them.
type CitationRecord struct {
	DocID          string           `json:"doc_id" yaml:"doc_id"`
	Title          string           `json:"title" yaml:"title"`
	Author         string           `json:"author" yaml:"author"`
	Version        string           `json:"version" yaml:"version"`
	RepositoryPath string           `json:"repository_path" yaml:"repository_path"`
	CitationFormat Format           `json:"citation_format" yaml:"citation_format"`
	Anchors        []CitationAnchor `json:"anchors" yaml:"anchors"`
}

// Anchor returns the anchor with the given key.
func (r *CitationRecord) Anchor(key string) (CitationAnchor, bool) {
	for _, a := range r.Anchors {
		if a.CitationKey == key {
			return a, true
		}
	}
	return CitationAnchor{}, false
}

// DocumentAnchor returns the synthetic document-level anchor, if present.
func (r *CitationRecord) DocumentAnchor() (CitationAnchor, bool) {
	for _, a := range r.Anchors {
		if a.Element.Type == ElementDocument {
			return a, true
		}
	}
	return CitationAnchor{}, false
}

// ContentHashes returns the hashes of the anchored elements in ordinal order.
func (r *CitationRecord) ContentHashes() []string {
	hashes := make([]string, 0, len(r.Anchors))
	for _, a := range r.Anchors {
		if a.Element.Type == ElementDocument {
			continue
		}
		hashes = append(hashes, a.Element.ContentHash)
	}
	return hashes
}

// CitationText renders a human-readable citation for the anchor key.
// Unknown keys fall back to the document-level rendering.
func (r *CitationRecord) CitationText(key string) string {
	anchor, ok := r.Anchor(key)
	if !ok {
		anchor = CitationAnchor{Element: StructuralElement{Type: ElementDocument}}
	}
	el := anchor.Element

	parts := []string{r.Title}
	switch r.CitationFormat {
	case FormatCode:
		if name := elementLabel(el); name != "" {
			parts = append(parts, name)
		}
		if lines := lineLabel(el); lines != "" {
			parts = append(parts, lines)
		}
		parts = append(parts, "Version "+r.Version)
	case FormatMarkdown:
		if el.Type == ElementHeader {
			level := el.Level
			if level < 1 {
				level = 1
			}
			parts = append(parts, strings.Repeat("#", level)+" "+el.Name)
		}
		parts = append(parts, "by "+r.Author, "Version "+r.Version)
	case FormatPDF:
		parts = append(parts, "by "+r.Author)
		if el.PageNumber != nil {
			parts = append(parts, fmt.Sprintf("Page %d", *el.PageNumber))
		}
	default:
		parts = append(parts, "by "+r.Author, "Version "+r.Version)
		if lines := lineLabel(el); lines != "" {
			parts = append(parts, lines)
		}
	}
	return strings.Join(parts, ", ")
}

func elementLabel(el StructuralElement) string {
	switch el.Type {
	case ElementClass:
		return "Class " + el.Name
	case ElementFunction:
		return "Function " + el.Name
	case ElementHeader:
		return "Section: " + el.Name
	default:
		return ""
	}
}

func lineLabel(el StructuralElement) string {
	if !el.HasLines() {
		return ""
	}
	start, end := el.LineRange()
	if start == end {
		return fmt.Sprintf("Line %d", start)
	}
	return fmt.Sprintf("Lines %d-%d", start, end)
}
