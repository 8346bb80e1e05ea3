package driving

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// SearchService provides hybrid retrieval to external actors.
type SearchService interface {
	// Search ranks the chunks of one knowledge base against query.
	// Embedding failures degrade the response instead of failing the call.
	Search(ctx context.Context, kb, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}
