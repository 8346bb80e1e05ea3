package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for citekit resources.
	uriScheme = "citekit://"

	kbPrefix       = uriScheme + "knowledge-bases/"
	documentsInfix = "/documents/"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge-bases",
		Name:        "knowledge-bases",
		Description: "List of all knowledge bases",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBasesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: kbPrefix + "{kb}/documents/{docId}",
		Name:        "citation-record",
		Description: "Citation record of a document, with every anchor",
		MIMEType:    "application/json",
	}, s.handleCitationRecordResource)
}

// handleKnowledgeBasesResource returns every knowledge base.
func (s *Server) handleKnowledgeBasesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.KnowledgeBase == nil {
		return jsonResult(req.Params.URI, []domain.KnowledgeBase{})
	}

	kbs, err := s.ports.KnowledgeBase.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}
	return jsonResult(req.Params.URI, kbs)
}

// handleCitationRecordResource returns the citation record of a document.
func (s *Server) handleCitationRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	kb, docID := parseRecordURI(req.Params.URI)
	if kb == "" || docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	record, err := s.ports.Citation.GetRecord(ctx, kb, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting citation record: %w", err)
	}
	return jsonResult(req.Params.URI, record)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// parseRecordURI splits citekit://knowledge-bases/{kb}/documents/{docId}.
// Document ids may contain slashes and may be percent-encoded.
func parseRecordURI(uri string) (kb, docID string) {
	if !strings.HasPrefix(uri, kbPrefix) {
		return "", ""
	}
	rest := strings.TrimPrefix(uri, kbPrefix)
	kb, docID, ok := strings.Cut(rest, documentsInfix)
	if !ok || strings.Contains(kb, "/") {
		return "", ""
	}
	if unescaped, err := url.PathUnescape(docID); err == nil {
		docID = unescaped
	}
	return kb, docID
}
