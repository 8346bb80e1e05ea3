package domain

import "time"

// KnowledgeBase is a named retrieval scope. Every chunk embedding in one
// knowledge base shares the pinned dimension.
type KnowledgeBase struct {
	// Name is the unique knowledge base name.
	Name string `json:"name" yaml:"name"`

	// Description is free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Dimensions is the pinned embedding dimension.
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	// EmbeddingModel is the model that produced the stored vectors.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// KnowledgeBaseStatus summarises a knowledge base.
type KnowledgeBaseStatus struct {
	KnowledgeBase KnowledgeBase `json:"knowledge_base" yaml:"knowledge_base"`
	DocumentCount int           `json:"document_count" yaml:"document_count"`
	ChunkCount    int           `json:"chunk_count" yaml:"chunk_count"`
}

// ValidKnowledgeBaseName reports whether name is usable as a knowledge base
// name: 1 to 64 characters of letters, digits, '-', '_' or '.'.
func ValidKnowledgeBaseName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
