// Package chunker provides the semantic, citation-preserving chunker.
//
// The chunker walks a document's citation anchors in document order and
// packs their text into token-bounded chunks. Element boundaries are kept
// whenever an element fits; oversized elements are split with the same
// overlap policy and every piece inherits the element's anchor. Each chunk
// after the first starts with the last overlap tokens of its predecessor,
// and the anchors of those tokens are shared by both chunks. The overlap is
// cut short only when a whole element would not otherwise fit.
package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Name is the registry name of the chunker.
const Name = "semantic"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits a citation-indexed document into chunks.
type Processor struct {
	settings domain.ChunkingSettings
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithSettings replaces every chunking setting.
func WithSettings(s domain.ChunkingSettings) Option {
	return func(p *Processor) {
		p.settings = s
	}
}

// WithMaxTokens sets the maximum tokens per chunk.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		p.settings.MaxTokens = n
	}
}

// WithOverlap sets the number of tokens carried into the next chunk.
func WithOverlap(n int) Option {
	return func(p *Processor) {
		p.settings.Overlap = n
	}
}

// WithMinChunkSize sets the smallest tail chunk emitted on its own.
func WithMinChunkSize(n int) Option {
	return func(p *Processor) {
		p.settings.MinChunkSize = n
	}
}

// WithRespectBoundaries enables or disables closing chunks at element boundaries.
func WithRespectBoundaries(v bool) Option {
	return func(p *Processor) {
		p.settings.RespectBoundaries = v
	}
}

// New creates a chunker with the given options applied over the defaults.
// Invalid settings are rejected with a *domain.ConfigurationError.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{settings: domain.DefaultChunkingSettings()}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.settings.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Settings returns the effective chunking settings.
func (p *Processor) Settings() domain.ChunkingSettings {
	return p.settings
}

// Process chunks the document. Input chunks are ignored.
func (p *Processor) Process(
	ctx context.Context, doc *domain.SourceDocument, record *domain.CitationRecord, _ []domain.Chunk,
) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Chunk(doc, record)
}

// Chunk produces the complete chunk sequence of doc, or a
// *domain.DocumentProcessingError if the anchors do not match the text.
func (p *Processor) Chunk(doc *domain.SourceDocument, record *domain.CitationRecord) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("chunk: %w", domain.ErrInvalidInput)
	}
	if record == nil || len(record.Anchors) == 0 {
		return nil, domain.NewDocumentProcessingError(doc.DocID, "chunk", fmt.Errorf("citation record has no anchors"))
	}
	if record.DocID != doc.DocID {
		return nil, domain.NewDocumentProcessingError(doc.DocID, "chunk",
			fmt.Errorf("citation record belongs to %q", record.DocID))
	}

	l := newLayout(doc.Text)
	if len(l.toks) == 0 {
		return nil, nil
	}

	owners, err := assignOwners(l, record.Anchors)
	if err != nil {
		return nil, domain.NewDocumentProcessingError(doc.DocID, "chunk", err)
	}

	spans := p.pack(owners)
	spans = p.mergeTail(spans)

	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = materialize(doc.DocID, i, s, l, owners, record.Anchors)
	}
	return chunks, nil
}

// assignOwners maps every token to the index of the anchor that owns it.
// A token belongs to the last anchor, in ordinal order, whose element span
// contains its word. Unclaimed tokens go to the document anchor when there is
// one, otherwise to the previous claimed token (or the first, for leading ones).
func assignOwners(l *layout, anchors []domain.CitationAnchor) ([]int, error) {
	owners := make([]int, len(l.toks))
	for i := range owners {
		owners[i] = -1
	}

	for i, a := range anchors {
		from, to, err := elementSpan(l, a.Element)
		if err != nil {
			return nil, fmt.Errorf("anchor %s: %w", a.CitationKey, err)
		}
		for t := l.firstToken(from); t < len(l.toks) && l.toks[t].word < to; t++ {
			owners[t] = i
		}
	}

	prev := -1
	for _, o := range owners {
		if o >= 0 {
			prev = o
			break
		}
	}
	if prev < 0 {
		return nil, fmt.Errorf("no anchor covers any text")
	}
	for t, o := range owners {
		if o >= 0 {
			prev = o
			continue
		}
		owners[t] = prev
	}
	return owners, nil
}

// elementSpan resolves the byte range an element covers. The document
// element covers the whole text.
func elementSpan(l *layout, el domain.StructuralElement) (int, int, error) {
	switch {
	case el.Type == domain.ElementDocument:
		return 0, len(l.text), nil
	case el.HasLines():
		start, end := el.LineRange()
		if start < 1 || end < start || end > l.lineCount() {
			return 0, 0, fmt.Errorf("lines %d-%d outside text of %d lines", start, end, l.lineCount())
		}
		from, to := l.lineSpan(start, end)
		return from, to, nil
	case el.HasPage():
		page := *el.PageNumber
		if page < 1 || page > l.pageCount() {
			return 0, 0, fmt.Errorf("page %d outside text of %d pages", page, l.pageCount())
		}
		from, to := l.pageSpan(page)
		return from, to, nil
	default:
		return 0, 0, fmt.Errorf("%s %q has no position", el.Type, el.Name)
	}
}

// span is a chunk as a token range [start, end) whose first seeded tokens
// repeat the previous chunk.
type span struct {
	start, end, seeded int
}

func (s span) size() int  { return s.end - s.start }
func (s span) fresh() int { return s.size() - s.seeded }

// pack runs the accumulator over the owner segments and returns chunk spans.
// A segment that fits in one chunk is never split: when the carried overlap
// would push it past max_tokens, the overlap shrinks to the room left.
func (p *Processor) pack(owners []int) []span {
	maxTokens := p.settings.MaxTokens
	var out []span
	acc := span{}

	closeChunk := func(seedLimit int) {
		out = append(out, acc)
		seed := min(p.settings.Overlap, acc.size(), seedLimit)
		acc = span{start: acc.end - seed, end: acc.end, seeded: seed}
	}

	for segStart := 0; segStart < len(owners); {
		segEnd := segStart + 1
		for segEnd < len(owners) && owners[segEnd] == owners[segStart] {
			segEnd++
		}
		n := segEnd - segStart

		if acc.size()+n > maxTokens && p.settings.RespectBoundaries && acc.fresh() > 0 {
			limit := p.settings.Overlap
			if n <= maxTokens {
				limit = maxTokens - n
			}
			closeChunk(limit)
		}
		if acc.size()+n <= maxTokens {
			acc.end = segEnd
		} else {
			for acc.end < segEnd {
				room := maxTokens - acc.size()
				if room <= 0 {
					closeChunk(p.settings.Overlap)
					continue
				}
				acc.end += min(room, segEnd-acc.end)
			}
		}
		segStart = segEnd
	}

	if acc.fresh() > 0 {
		out = append(out, acc)
	}
	return out
}

// mergeTail folds a short final chunk into its predecessor.
func (p *Processor) mergeTail(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	last := spans[len(spans)-1]
	if last.size() >= p.settings.MinChunkSize {
		return spans
	}
	spans[len(spans)-2].end = last.end
	return spans[:len(spans)-1]
}

// materialize builds the domain chunk for a span.
func materialize(
	docID string, seq int, s span, l *layout, owners []int, anchors []domain.CitationAnchor,
) domain.Chunk {
	counts := make(map[int]int)
	var order []int
	for t := s.start; t < s.end; t++ {
		o := owners[t]
		if counts[o] == 0 {
			order = append(order, o)
		}
		counts[o]++
	}

	refs := make([]string, len(order))
	primary := order[0]
	for i, o := range order {
		refs[i] = anchors[o].CitationKey
		if counts[o] > counts[primary] ||
			(counts[o] == counts[primary] && anchors[o].Ordinal < anchors[primary].Ordinal) {
			primary = o
		}
	}

	from, to := l.spanStart(s.start), l.spanEnd(s.end-1)
	return domain.Chunk{
		ChunkID:               domain.ChunkID(docID, seq),
		DocID:                 docID,
		SequenceNo:            seq,
		Text:                  l.text[from:to],
		TokenCount:            s.size(),
		OverlapTokensWithPrev: s.seeded,
		AnchorRefs:            refs,
		PrimaryAnchor:         anchors[primary].CitationKey,
		StartOffset:           from,
		EndOffset:             to,
	}
}
