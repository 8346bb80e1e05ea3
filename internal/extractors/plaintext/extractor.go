// Package plaintext extracts paragraph structure from plain text files.
package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.StructureExtractor = (*Extractor)(nil)

// nameWords is how many leading words name a paragraph.
const nameWords = 8

var extensions = map[string]bool{
	".txt": true, ".text": true, ".rst": true, ".log": true, ".csv": true, "": true,
}

// Extractor splits plain text into paragraphs separated by blank lines.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "plaintext"
}

// Supports reports whether path has a plain text extension or none.
func (e *Extractor) Supports(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Extract produces one paragraph element per blank-line separated block.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := string(content)
	docID := filepath.ToSlash(path)
	return &domain.SourceDocument{
		DocID: docID,
		Path:  path,
		Text:  text,
		Structure: &domain.StructureModel{
			DocID:    docID,
			Format:   domain.FormatGeneric,
			Elements: Paragraphs(text),
		},
		Metadata: domain.DocumentMetadata{
			RepositoryPath: docID,
			Format:         domain.FormatGeneric,
		},
	}, nil
}

// Paragraphs returns a paragraph element for every run of non-blank lines.
func Paragraphs(text string) []domain.StructuralElement {
	lines := strings.Split(text, "\n")
	var elements []domain.StructuralElement
	start := 0
	flush := func(end int) {
		if start == 0 {
			return
		}
		body := strings.Join(lines[start-1:end], "\n")
		elements = append(elements, domain.StructuralElement{
			Type:        domain.ElementParagraph,
			Name:        paragraphName(body),
			StartLine:   domain.IntPtr(start),
			EndLine:     domain.IntPtr(end),
			ContentHash: domain.HashContent(body),
		})
		start = 0
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(i)
			continue
		}
		if start == 0 {
			start = i + 1
		}
	}
	flush(len(lines))
	return elements
}

func paragraphName(body string) string {
	words := strings.Fields(body)
	if len(words) > nameWords {
		return strings.Join(words[:nameWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
