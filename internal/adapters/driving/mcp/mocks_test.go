package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response  *domain.SearchResponse
	err       error
	lastKB    string
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	kb, query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastKB = kb
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{Query: query, KnowledgeBase: kb}, nil
	}
	return m.response, nil
}

// mockCitationService is a mock implementation of driving.CitationService.
type mockCitationService struct {
	record   *domain.CitationRecord
	chunks   []domain.Chunk
	citation string
	err      error
	lastKB   string
	lastID   string
}

func (m *mockCitationService) GetRecord(_ context.Context, kb, docID string) (*domain.CitationRecord, error) {
	m.lastKB = kb
	m.lastID = docID
	return m.record, m.err
}

func (m *mockCitationService) GetChunks(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockCitationService) Cite(_ context.Context, kb, chunkID string) (string, error) {
	m.lastKB = kb
	m.lastID = chunkID
	return m.citation, m.err
}

// mockKnowledgeBaseService is a mock implementation of driving.KnowledgeBaseService.
type mockKnowledgeBaseService struct {
	kbs []domain.KnowledgeBase
	err error
}

func (m *mockKnowledgeBaseService) Create(_ context.Context, name, description string) (*domain.KnowledgeBase, error) {
	return &domain.KnowledgeBase{Name: name, Description: description}, m.err
}

func (m *mockKnowledgeBaseService) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	return m.kbs, m.err
}

func (m *mockKnowledgeBaseService) Status(_ context.Context, name string) (*domain.KnowledgeBaseStatus, error) {
	return &domain.KnowledgeBaseStatus{KnowledgeBase: domain.KnowledgeBase{Name: name}}, m.err
}

func (m *mockKnowledgeBaseService) Delete(_ context.Context, _ string) error {
	return m.err
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}
