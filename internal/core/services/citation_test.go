package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

func header(name string, level, start, end int) domain.StructuralElement {
	return domain.StructuralElement{
		Type:        domain.ElementHeader,
		Name:        name,
		Level:       level,
		StartLine:   domain.IntPtr(start),
		EndLine:     domain.IntPtr(end),
		ContentHash: domain.HashContent(name),
	}
}

// TestCitationIndexer_Deterministic tests that reindexing yields identical keys
func TestCitationIndexer_Deterministic(t *testing.T) {
	structure := &domain.StructureModel{
		DocID:  "guide.md",
		Format: domain.FormatMarkdown,
		Elements: []domain.StructuralElement{
			header("Intro", 1, 1, 10),
			header("Install", 2, 11, 40),
			header("Usage", 2, 41, 60),
		},
	}
	indexer := NewCitationIndexer()

	first, err := indexer.Index(structure, "guide.md", domain.DocumentMetadata{Title: "Guide"})
	require.NoError(t, err)
	second, err := indexer.Index(structure, "guide.md", domain.DocumentMetadata{Title: "Guide"})
	require.NoError(t, err)

	require.Len(t, first.Anchors, 3)
	assert.Equal(t, first, second)
	for i, a := range first.Anchors {
		assert.Equal(t, i, a.Ordinal)
		assert.True(t, strings.HasPrefix(a.CitationKey, "guide.md:header:"))
	}
	assert.NotEqual(t, first.Anchors[1].CitationKey, first.Anchors[2].CitationKey)
}

// TestCitationIndexer_KeyDependsOnPosition tests the key inputs
func TestCitationIndexer_KeyDependsOnPosition(t *testing.T) {
	a := header("Intro", 1, 1, 10)
	b := header("Intro", 1, 2, 10)
	c := header("Intro", 1, 1, 99)

	assert.NotEqual(t, CitationKey("doc", a), CitationKey("doc", b))
	assert.Equal(t, CitationKey("doc", a), CitationKey("doc", c), "end line is not part of the key")
	assert.NotEqual(t, CitationKey("doc", a), CitationKey("other", a))
}

// TestCitationIndexer_EmptyStructure tests the synthetic document anchor
func TestCitationIndexer_EmptyStructure(t *testing.T) {
	indexer := NewCitationIndexer()

	record, err := indexer.Index(&domain.StructureModel{}, "notes/todo.txt", domain.DocumentMetadata{})
	require.NoError(t, err)

	require.Len(t, record.Anchors, 1)
	assert.Equal(t, domain.ElementDocument, record.Anchors[0].Element.Type)
	assert.Equal(t, "todo", record.Title)
	assert.Equal(t, domain.DefaultAuthor, record.Author)
	assert.Equal(t, domain.DefaultVersion, record.Version)
	assert.Equal(t, domain.FormatGeneric, record.CitationFormat)

	nilRecord, err := indexer.Index(nil, "notes/todo.txt", domain.DocumentMetadata{})
	require.NoError(t, err)
	assert.Equal(t, record, nilRecord)
}

// TestCitationIndexer_DemotesMalformedElements tests local failure handling
func TestCitationIndexer_DemotesMalformedElements(t *testing.T) {
	structure := &domain.StructureModel{
		Format: domain.FormatCode,
		Elements: []domain.StructuralElement{
			{Type: domain.ElementFunction, Name: "orphan"},
			{Type: domain.ElementFunction, Name: "Parse", StartLine: domain.IntPtr(3), EndLine: domain.IntPtr(9)},
			{Type: domain.ElementFunction, Name: "backwards", StartLine: domain.IntPtr(20), EndLine: domain.IntPtr(12)},
			{Type: "macro", Name: "m", StartLine: domain.IntPtr(30)},
		},
	}

	record, err := NewCitationIndexer().Index(structure, "parser.go", domain.DocumentMetadata{})
	require.NoError(t, err)

	require.Len(t, record.Anchors, 2)
	assert.Equal(t, domain.ElementDocument, record.Anchors[0].Element.Type)
	assert.Equal(t, 0, record.Anchors[0].Ordinal)
	assert.Equal(t, "Parse", record.Anchors[1].Element.Name)
	assert.Equal(t, 1, record.Anchors[1].Ordinal)
	assert.Equal(t, domain.FormatCode, record.CitationFormat)
}

// TestCitationIndexer_Collisions tests ordinal suffixes for identical keys
func TestCitationIndexer_Collisions(t *testing.T) {
	page := domain.StructuralElement{Type: domain.ElementPage, Name: "Page 1", PageNumber: domain.IntPtr(1)}
	structure := &domain.StructureModel{Elements: []domain.StructuralElement{page, page, page}}

	record, err := NewCitationIndexer().Index(structure, "scan.pdf", domain.DocumentMetadata{})
	require.NoError(t, err)

	base := CitationKey("scan.pdf", page)
	require.Len(t, record.Anchors, 3)
	assert.Equal(t, base, record.Anchors[0].CitationKey)
	assert.Equal(t, base+"~1", record.Anchors[1].CitationKey)
	assert.Equal(t, base+"~2", record.Anchors[2].CitationKey)
}

// TestCitationIndexer_Metadata tests metadata and format precedence
func TestCitationIndexer_Metadata(t *testing.T) {
	structure := &domain.StructureModel{Format: domain.FormatMarkdown, Elements: []domain.StructuralElement{header("A", 1, 1, 2)}}
	meta := domain.DocumentMetadata{
		Title:          "Handbook",
		Author:         "Grace",
		Version:        "3.0",
		RepositoryPath: "docs/handbook.md",
		Format:         domain.FormatGeneric,
	}

	record, err := NewCitationIndexer().Index(structure, "handbook", meta)
	require.NoError(t, err)

	assert.Equal(t, "Handbook", record.Title)
	assert.Equal(t, "Grace", record.Author)
	assert.Equal(t, "3.0", record.Version)
	assert.Equal(t, "docs/handbook.md", record.RepositoryPath)
	assert.Equal(t, domain.FormatGeneric, record.CitationFormat)
}

// TestCitationIndexer_EmptyDocID tests input validation
func TestCitationIndexer_EmptyDocID(t *testing.T) {
	_, err := NewCitationIndexer().Index(&domain.StructureModel{}, "  ", domain.DocumentMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
