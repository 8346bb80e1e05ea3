// Package mcp provides an MCP (Model Context Protocol) server adapter for citekit.
// It lets AI assistants search knowledge bases and resolve citations.
package mcp

import "errors"

var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrMissingCitationService is returned when the citation service is not provided.
	ErrMissingCitationService = errors.New("mcp: citation service is required")
)
