package mcp

import (
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search ranks chunks of a knowledge base.
	Search driving.SearchService

	// Citation resolves chunk citations and citation records.
	Citation driving.CitationService

	// KnowledgeBase lists knowledge bases. Optional.
	KnowledgeBase driving.KnowledgeBaseService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Citation == nil {
		return ErrMissingCitationService
	}
	return nil
}
