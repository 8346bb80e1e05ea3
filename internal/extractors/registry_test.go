package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// stubExtractor claims every path.
type stubExtractor struct{ name string }

func (s *stubExtractor) Name() string { return s.name }
func (s *stubExtractor) Supports(string) bool { return true }
func (s *stubExtractor) Extract(context.Context, string, []byte) (*domain.SourceDocument, error) {
	return &domain.SourceDocument{}, nil
}

func TestDefaultRegistry_Get(t *testing.T) {
	r := NewDefaultRegistry()

	tests := map[string]string{
		"docs/guide.md":    "markdown",
		"cmd/main.go":      "code",
		"tool.py":          "code",
		"papers/study.pdf": "pdf",
		"site/index.html":  "html",
		"notes.txt":        "plaintext",
		"LICENSE":          "plaintext",
	}
	for path, want := range tests {
		e, err := r.Get(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, e.Name(), path)
	}

	assert.Equal(t, []string{"plaintext", "pdf", "code", "html", "markdown"}, r.Names())
}

func TestRegistry_Unsupported(t *testing.T) {
	_, err := NewDefaultRegistry().Get("image.png")

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(&stubExtractor{name: "custom"})

	e, err := r.Get("docs/guide.md")

	require.NoError(t, err)
	assert.Equal(t, "custom", e.Name())
}
