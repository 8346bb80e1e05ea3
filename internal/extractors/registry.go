package extractors

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/extractors/code"
	"github.com/custodia-labs/citekit/internal/extractors/html"
	"github.com/custodia-labs/citekit/internal/extractors/markdown"
	"github.com/custodia-labs/citekit/internal/extractors/pdf"
	"github.com/custodia-labs/citekit/internal/extractors/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry selects an extractor by path. Later registrations take precedence.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.StructureExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with every built-in extractor.
// Plain text is registered first so it only handles what nothing else does.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(pdf.New())
	r.Register(code.New())
	r.Register(html.New())
	r.Register(markdown.New())
	return r
}

// Register adds an extractor.
func (r *Registry) Register(e driven.StructureExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// Get returns the most recently registered extractor supporting path.
func (r *Registry) Get(path string) (driven.StructureExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.extractors) - 1; i >= 0; i-- {
		if r.extractors[i].Supports(path) {
			return r.extractors[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedType)
}

// Names returns the registered extractor names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}
