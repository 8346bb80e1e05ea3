package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/logger"
)

// citationHashLen is the number of hex characters kept from the key hash.
const citationHashLen = 12

// CitationIndexer assigns stable citation keys to structural elements and
// builds a document's CitationRecord. It keeps no state between calls, so
// documents can be indexed in parallel.
type CitationIndexer struct{}

// NewCitationIndexer creates a citation indexer.
func NewCitationIndexer() *CitationIndexer {
	return &CitationIndexer{}
}

// Index builds the citation record for one document version.
//
// Elements are traversed in document order. Malformed elements are demoted
// to the document-level anchor and logged; they never fail the document.
// An empty structure yields a single document-level anchor.
func (c *CitationIndexer) Index(
	structure *domain.StructureModel, docID string, meta domain.DocumentMetadata,
) (*domain.CitationRecord, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, fmt.Errorf("citation index: empty doc_id: %w", domain.ErrInvalidInput)
	}

	record := &domain.CitationRecord{
		DocID:          docID,
		Title:          meta.Title,
		Author:         meta.Author,
		Version:        meta.Version,
		RepositoryPath: meta.RepositoryPath,
		CitationFormat: resolveFormat(structure, meta),
	}
	if record.Title == "" {
		record.Title = titleFromPath(meta.RepositoryPath, docID)
	}
	if record.Author == "" {
		record.Author = domain.DefaultAuthor
	}
	if record.Version == "" {
		record.Version = domain.DefaultVersion
	}

	var elements []domain.StructuralElement
	demoted := 0
	if structure != nil {
		for _, el := range structure.Elements {
			if reason := malformed(el); reason != "" {
				serr := &domain.StructureError{DocID: docID, Element: el, Reason: reason}
				logger.Warn("%v; using document-level anchor", serr)
				demoted++
				continue
			}
			elements = append(elements, el)
		}
	}

	if structure.IsEmpty() || demoted > 0 {
		documentEl := domain.StructuralElement{Type: domain.ElementDocument, Name: record.Title}
		elements = append([]domain.StructuralElement{documentEl}, elements...)
	}

	seen := make(map[string]int, len(elements))
	record.Anchors = make([]domain.CitationAnchor, 0, len(elements))
	for i, el := range elements {
		base := CitationKey(docID, el)
		key := base
		if n := seen[base]; n > 0 {
			key = base + "~" + strconv.Itoa(n)
		}
		seen[base]++
		record.Anchors = append(record.Anchors, domain.CitationAnchor{
			CitationKey: key,
			Element:     el,
			Ordinal:     i,
		})
	}

	logger.Debug("Citation index %s: %d anchors (%d demoted)", docID, len(record.Anchors), demoted)
	return record, nil
}

// CitationKey derives the base key of an element. It is a pure function of
// the document id, element type, element name and starting line or page.
func CitationKey(docID string, el domain.StructuralElement) string {
	h := sha256.New()
	for _, part := range []string{docID, string(el.Type), el.Name, strconv.Itoa(el.Position())} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return docID + ":" + string(el.Type) + ":" + sum[:citationHashLen]
}

// malformed returns why an element cannot be anchored, or "".
func malformed(el domain.StructuralElement) string {
	if !el.Type.IsValid() || el.Type == domain.ElementDocument {
		return fmt.Sprintf("unsupported element type %q", el.Type)
	}
	if !el.HasLines() && !el.HasPage() {
		return "no line range or page number"
	}
	if el.HasLines() {
		start, end := el.LineRange()
		if start < 1 {
			return fmt.Sprintf("start line %d out of range", start)
		}
		if start > end {
			return fmt.Sprintf("start line %d after end line %d", start, end)
		}
	}
	if el.HasPage() && *el.PageNumber < 1 {
		return fmt.Sprintf("page %d out of range", *el.PageNumber)
	}
	return ""
}

func resolveFormat(structure *domain.StructureModel, meta domain.DocumentMetadata) domain.Format {
	if meta.Format.IsValid() {
		return meta.Format
	}
	if structure != nil && structure.Format.IsValid() {
		return structure.Format
	}
	return domain.FormatGeneric
}

func titleFromPath(repoPath, docID string) string {
	p := repoPath
	if p == "" {
		p = docID
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
