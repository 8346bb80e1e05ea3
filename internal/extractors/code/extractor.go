// Package code extracts class and function structure from source files.
//
// Go files are parsed with go/parser. Other languages are scanned line by
// line for class and function declarations; a declaration ends before the
// next declaration at the same or a shallower indentation.
package code

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.StructureExtractor = (*Extractor)(nil)

var extensions = map[string]bool{
	".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".java": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true, ".go": true,
	".rb": true, ".php": true, ".swift": true, ".kt": true, ".rs": true,
	".sh": true, ".ps1": true, ".bat": true,
}

// Extractor handles source code files.
type Extractor struct{}

// New creates a new code extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "code"
}

// Supports reports whether path has a known source extension.
func (e *Extractor) Supports(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Extract returns the source with its class and function elements.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := string(content)
	lines := strings.Split(src, "\n")

	var decls []declaration
	if strings.EqualFold(filepath.Ext(path), ".go") {
		var ok bool
		decls, ok = goDeclarations(path, content)
		if !ok {
			decls = scanDeclarations(lines)
		}
	} else {
		decls = scanDeclarations(lines)
	}

	elements := make([]domain.StructuralElement, 0, len(decls))
	for _, d := range decls {
		body := strings.Join(lines[d.start-1:d.end], "\n")
		elements = append(elements, domain.StructuralElement{
			Type:        d.kind,
			Name:        d.name,
			StartLine:   domain.IntPtr(d.start),
			EndLine:     domain.IntPtr(d.end),
			ContentHash: domain.HashContent(body),
		})
	}

	docID := filepath.ToSlash(path)
	return &domain.SourceDocument{
		DocID: docID,
		Path:  path,
		Text:  src,
		Structure: &domain.StructureModel{
			DocID:    docID,
			Format:   domain.FormatCode,
			Elements: elements,
		},
		Metadata: domain.DocumentMetadata{
			RepositoryPath: docID,
			Format:         domain.FormatCode,
		},
	}, nil
}

// declaration is a class or function found in source, with an inclusive
// 1-based line range.
type declaration struct {
	kind       domain.ElementType
	name       string
	start, end int
}
