// Package invariants provides a post-processor that rejects chunk sequences
// violating the citation mapping guarantees.
package invariants

import (
	"context"
	"fmt"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Name is the registry name of the checker.
const Name = "invariants"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor checks chunks and passes them through unchanged.
type Processor struct{}

// New creates the invariant checker.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process returns chunks unchanged, or a *domain.DocumentProcessingError
// describing the first violated invariant.
func (p *Processor) Process(
	_ context.Context, doc *domain.SourceDocument, record *domain.CitationRecord, chunks []domain.Chunk,
) ([]domain.Chunk, error) {
	if err := Check(doc, record, chunks); err != nil {
		return nil, domain.NewDocumentProcessingError(doc.DocID, Name, err)
	}
	return chunks, nil
}

// Check verifies sequence numbering, anchoring and text offsets of chunks.
func Check(doc *domain.SourceDocument, record *domain.CitationRecord, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if record == nil {
		return fmt.Errorf("chunks without a citation record")
	}

	keys := make(map[string]bool, len(record.Anchors))
	for _, a := range record.Anchors {
		keys[a.CitationKey] = true
	}

	prevEnd := 0
	for i, c := range chunks {
		if c.DocID != doc.DocID {
			return fmt.Errorf("chunk %d belongs to %q", i, c.DocID)
		}
		if c.SequenceNo != i || c.ChunkID != domain.ChunkID(doc.DocID, i) {
			return fmt.Errorf("chunk %d numbered %d (%s)", i, c.SequenceNo, c.ChunkID)
		}
		if len(c.AnchorRefs) == 0 {
			return fmt.Errorf("chunk %s has no anchors", c.ChunkID)
		}
		primaryListed := false
		for _, ref := range c.AnchorRefs {
			if !keys[ref] {
				return fmt.Errorf("chunk %s references unknown anchor %s", c.ChunkID, ref)
			}
			primaryListed = primaryListed || ref == c.PrimaryAnchor
		}
		if !primaryListed {
			return fmt.Errorf("chunk %s primary anchor %s not in anchor_refs", c.ChunkID, c.PrimaryAnchor)
		}
		if c.StartOffset < 0 || c.EndOffset > len(doc.Text) || c.StartOffset >= c.EndOffset {
			return fmt.Errorf("chunk %s offsets %d-%d outside text", c.ChunkID, c.StartOffset, c.EndOffset)
		}
		if doc.Text[c.StartOffset:c.EndOffset] != c.Text {
			return fmt.Errorf("chunk %s text does not match offsets %d-%d", c.ChunkID, c.StartOffset, c.EndOffset)
		}
		if c.StartOffset > prevEnd || c.EndOffset <= prevEnd && i > 0 {
			return fmt.Errorf("chunk %s leaves a gap or adds no text", c.ChunkID)
		}
		if c.OverlapTokensWithPrev < 0 || c.OverlapTokensWithPrev >= c.TokenCount {
			return fmt.Errorf("chunk %s overlap %d of %d tokens", c.ChunkID, c.OverlapTokensWithPrev, c.TokenCount)
		}
		prevEnd = c.EndOffset
	}
	if prevEnd != len(doc.Text) {
		return fmt.Errorf("chunks end at %d of %d bytes", prevEnd, len(doc.Text))
	}
	return nil
}
