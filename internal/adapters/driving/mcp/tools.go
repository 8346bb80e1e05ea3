package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	KnowledgeBase string   `json:"knowledge_base" jsonschema:"the knowledge base to search"`
	Query         string   `json:"query" jsonschema:"the search query"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of results (default from settings)"`
	MinScore      *float64 `json:"min_score,omitempty" jsonschema:"drop results with a fused score below this value, between 0 and 1"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Count    int                  `json:"count"`
	Degraded bool                 `json:"degraded"`
	Warnings []string             `json:"warnings,omitempty"`
}

// SearchResultOutput represents a single ranked chunk.
type SearchResultOutput struct {
	ChunkID      string  `json:"chunk_id"`
	DocID        string  `json:"doc_id"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
	CitationKey  string  `json:"citation_key"`
	CitationText string  `json:"citation_text"`
	Text         string  `json:"text"`
}

// CiteInput is the input schema for the cite tool.
type CiteInput struct {
	KnowledgeBase string `json:"knowledge_base" jsonschema:"the knowledge base holding the chunk"`
	ChunkID       string `json:"chunk_id" jsonschema:"the chunk id returned by search"`
}

// CiteOutput is the output schema for the cite tool.
type CiteOutput struct {
	ChunkID      string `json:"chunk_id"`
	CitationText string `json:"citation_text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid keyword and vector search over one knowledge base; every result carries its citation",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cite",
		Description: "Render the citation of a chunk",
	}, s.handleCite)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if input.KnowledgeBase == "" {
		return nil, SearchOutput{}, errors.New("knowledge_base is required")
	}

	opts := domain.SearchOptions{TopK: input.TopK, MinScore: input.MinScore}
	resp, err := s.ports.Search.Search(ctx, input.KnowledgeBase, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(resp.Results)),
		Count:    len(resp.Results),
		Degraded: resp.Degraded,
		Warnings: resp.Warnings,
	}

	for i, r := range resp.Results {
		output.Results[i] = SearchResultOutput{
			ChunkID:      r.ChunkID,
			DocID:        r.DocID,
			Score:        r.Score,
			VectorScore:  r.VectorScore,
			KeywordScore: r.KeywordScore,
			CitationKey:  r.CitationKey,
			CitationText: r.CitationText,
			Text:         r.Text,
		}
	}

	return nil, output, nil
}

// handleCite handles the cite tool invocation.
func (s *Server) handleCite(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CiteInput,
) (*mcp.CallToolResult, CiteOutput, error) {
	if input.KnowledgeBase == "" || input.ChunkID == "" {
		return nil, CiteOutput{}, errors.New("knowledge_base and chunk_id are required")
	}

	text, err := s.ports.Citation.Cite(ctx, input.KnowledgeBase, input.ChunkID)
	if err != nil {
		return nil, CiteOutput{}, err
	}

	return nil, CiteOutput{ChunkID: input.ChunkID, CitationText: text}, nil
}
