package postprocessors

import (
	"context"
	"reflect"
	"testing"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/postprocessors/chunker"
)

// registryMockProcessor is a simple mock for testing registry functionality.
type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(
	_ context.Context, _ *domain.SourceDocument, _ *domain.CitationRecord, chunks []domain.Chunk,
) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if len(r.builders) != 0 {
		t.Errorf("expected empty builders, got %d", len(r.builders))
	}
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})

	proc, err := r.Build("test", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}

	if _, err := r.Build("nonexistent", nil); err == nil {
		t.Error("expected error for unknown processor")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	if !reflect.DeepEqual(r.Names(), []string{"invariants", "semantic"}) {
		t.Errorf("unexpected names %v", r.Names())
	}
	if !r.Has("semantic") || r.Has("chunker") {
		t.Error("unexpected registrations")
	}
}

func TestBuildChunker_WithConfig(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("semantic", map[string]any{
		"max_tokens":         int64(300),
		"overlap":            float64(30),
		"min_chunk_size":     50,
		"respect_boundaries": false,
	})
	if err != nil {
		t.Fatalf("Build chunker failed: %v", err)
	}

	got := proc.(*chunker.Processor).Settings()
	want := domain.ChunkingSettings{MaxTokens: 300, Overlap: 30, MinChunkSize: 50, RespectBoundaries: false}
	if got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}
}

func TestBuildChunker_WithNilConfig(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("semantic", nil)
	if err != nil {
		t.Fatalf("Build chunker with nil config failed: %v", err)
	}
	if proc.(*chunker.Processor).Settings() != domain.DefaultChunkingSettings() {
		t.Error("expected default settings")
	}
}

func TestBuildChunker_RejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	if _, err := r.Build("semantic", map[string]any{"max_tokens": 10, "overlap": 20}); err == nil {
		t.Error("expected configuration error")
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
		found    bool
	}{
		{"int value", map[string]any{"size": 100}, "size", 100, true},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200, true},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300, true},
		{"zero value", map[string]any{"size": 0}, "size", 0, true},
		{"string value", map[string]any{"size": "400"}, "size", 0, false},
		{"missing key", map[string]any{"other": 100}, "size", 0, false},
		{"nil config", nil, "size", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, found := getIntFromConfig(tt.cfg, tt.key)
			if result != tt.expected || found != tt.found {
				t.Errorf("expected (%d, %t), got (%d, %t)", tt.expected, tt.found, result, found)
			}
		})
	}
}
