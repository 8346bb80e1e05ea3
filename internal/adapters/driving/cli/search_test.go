package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "hybrid search")
	assert.Contains(t, searchCmd.Long, "BM25")
	assert.Contains(t, searchCmd.Long, "degraded")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestSearchCmd_RequiresKB(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--kb is required")
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "--kb", "docs", "install steps")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "Guide, Install, lines 1-12")
	assert.Contains(t, out, "0.87")
	assert.Contains(t, out, "guide.md_chunk_0")

	search := currentTestServices.search
	assert.Equal(t, "docs", search.kb)
	assert.Equal(t, "install steps", search.query)
	assert.Equal(t, 0, search.opts.TopK)
	assert.Nil(t, search.opts.MinScore)
}

func TestSearchCmd_PassesLimitAndMinScore(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "--kb", "docs", "-n", "5", "--min-score", "0", "query")
	require.NoError(t, err)

	search := currentTestServices.search
	assert.Equal(t, 5, search.opts.TopK)
	require.NotNil(t, search.opts.MinScore)
	assert.Equal(t, 0.0, *search.opts.MinScore)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "--kb", "docs", "--json", "query")
	require.NoError(t, err)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "guide.md#install", resp.Results[0].CitationKey)
	assert.Contains(t, out, `"citation_text"`)
}

func TestSearchCmd_Degraded(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.search.response = &domain.SearchResponse{
		Degraded: true,
		Warnings: []string{"embedding failed: connection refused"},
	}

	out, err := execute(t, "search", "--kb", "docs", "query")
	require.NoError(t, err)
	assert.Contains(t, out, "Keyword-only results")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.search.err = errors.New("index unavailable")

	_, err := execute(t, "search", "--kb", "docs", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	_, err := execute(t, "search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		n        int
		expected string
	}{
		{name: "short text", text: "hello world", n: 20, expected: "hello world"},
		{name: "collapses whitespace", text: "a\n\n  b\tc", n: 20, expected: "a b c"},
		{name: "truncates", text: "abcdefghij", n: 4, expected: "abcd..."},
		{name: "multibyte runes", text: "ééééé", n: 2, expected: "éé..."},
		{name: "empty", text: "", n: 4, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, snippet(tt.text, tt.n))
		})
	}
}
