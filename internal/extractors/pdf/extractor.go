// Package pdf extracts page structure from PDF files with ledongthuc/pdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.StructureExtractor = (*Extractor)(nil)

// PageSeparator joins page texts. Page numbers are recovered by counting it.
const PageSeparator = "\f"

// Extractor produces one page element per PDF page.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "pdf"
}

// Supports reports whether path is a PDF.
func (e *Extractor) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Extract reads the plain text of every page.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, title, err := readPages(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("reading pdf %s: %w", path, err)
	}
	return build(path, pages, title), nil
}

// readPages returns the text of each page in order. Pages without content
// or that fail to decode are kept as empty pages so numbering is preserved.
func readPages(ctx context.Context, content []byte) (pages []string, title string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, title, err = nil, "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, "", err
	}

	if info := reader.Trailer().Key("Info"); !info.IsNull() {
		title = strings.TrimSpace(info.Key("Title").Text())
	}

	pages = make([]string, reader.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debug("pdf page %d: %v", i+1, err)
			continue
		}
		// Form feeds inside a page would shift every later page number.
		pages[i] = strings.ReplaceAll(text, PageSeparator, " ")
	}
	return pages, title, nil
}

// build assembles the document from page texts.
func build(path string, pages []string, title string) *domain.SourceDocument {
	elements := make([]domain.StructuralElement, 0, len(pages))
	for i, text := range pages {
		n := i + 1
		elements = append(elements, domain.StructuralElement{
			Type:        domain.ElementPage,
			Name:        "Page " + strconv.Itoa(n),
			PageNumber:  domain.IntPtr(n),
			ContentHash: domain.HashContent(text),
		})
	}

	docID := filepath.ToSlash(path)
	return &domain.SourceDocument{
		DocID: docID,
		Path:  path,
		Text:  strings.Join(pages, PageSeparator),
		Structure: &domain.StructureModel{
			DocID:    docID,
			Format:   domain.FormatPDF,
			Elements: elements,
		},
		Metadata: domain.DocumentMetadata{
			Title:          title,
			RepositoryPath: docID,
			Format:         domain.FormatPDF,
		},
	}
}
