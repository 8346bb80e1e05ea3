package domain

import (
	"strconv"
	"time"
)

// SourceDocument is an extracted document ready for citation indexing
// and chunking. It is the input boundary of the engine.
type SourceDocument struct {
	// DocID is the stable document identifier within a knowledge base.
	DocID string

	// Path is where the document was read from, if anywhere.
	Path string

	// Text is the full extracted text.
	Text string

	// Structure is the extracted structure. May be empty.
	Structure *StructureModel

	// Metadata is the descriptive metadata.
	Metadata DocumentMetadata
}

// TextHash fingerprints the full document text.
func (d *SourceDocument) TextHash() string {
	return HashContent(d.Text)
}

// Chunk is a bounded, possibly overlapping unit of document text with its
// citation mapping.
type Chunk struct {
	// ChunkID is DocID + "_chunk_" + SequenceNo.
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`

	// DocID links to the owning document.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// SequenceNo is the 0-based position within the document.
	SequenceNo int `json:"sequence_no" yaml:"sequence_no"`

	// Text is an exact substring of the document text.
	Text string `json:"text" yaml:"text"`

	// TokenCount is the number of tokens in Text, overlap included.
	TokenCount int `json:"token_count" yaml:"token_count"`

	// OverlapTokensWithPrev is how many leading tokens repeat the previous chunk.
	OverlapTokensWithPrev int `json:"overlap_tokens_with_prev" yaml:"overlap_tokens_with_prev"`

	// AnchorRefs lists contributing citation keys in order of first contribution.
	AnchorRefs []string `json:"anchor_refs" yaml:"anchor_refs"`

	// PrimaryAnchor is the anchor contributing the most tokens.
	PrimaryAnchor string `json:"primary_anchor" yaml:"primary_anchor"`

	// StartOffset is the byte offset of Text inside the document text.
	StartOffset int `json:"start_offset" yaml:"start_offset"`

	// EndOffset is the exclusive end byte offset of Text.
	EndOffset int `json:"end_offset" yaml:"end_offset"`
}

// ChunkID builds the identifier of the chunk at seq within docID.
func ChunkID(docID string, seq int) string {
	return docID + "_chunk_" + strconv.Itoa(seq)
}

// IndexedDocument is a document's stored state inside a knowledge base.
type IndexedDocument struct {
	// Record is the citation record of the indexed version.
	Record *CitationRecord

	// TextHash fingerprints the indexed text.
	TextHash string

	// ChunkCount is the number of chunks committed.
	ChunkCount int

	// UpdatedAt is when the document was last committed.
	UpdatedAt time.Time
}

// IsUnchanged reports whether the stored version matches a newly indexed
// one: same text, and the same anchors with the same element hashes in the
// same order. Demoted elements are absent from both records.
func (d *IndexedDocument) IsUnchanged(doc *SourceDocument, record *CitationRecord) bool {
	if d == nil || d.Record == nil || doc == nil || record == nil {
		return false
	}
	if d.TextHash != doc.TextHash() {
		return false
	}
	if len(d.Record.Anchors) != len(record.Anchors) {
		return false
	}
	for i, a := range d.Record.Anchors {
		b := record.Anchors[i]
		if a.CitationKey != b.CitationKey || a.Element.ContentHash != b.Element.ContentHash {
			return false
		}
	}
	return true
}
