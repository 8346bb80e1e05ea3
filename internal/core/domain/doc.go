// Package domain defines the core business entities for citekit.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - StructureModel: The flattened, ordered structural elements of a document
//   - CitationRecord: Stable, addressable anchors for one document version
//   - Chunk: A token-bounded, citation-anchored unit of document text
//   - SearchResult: A ranked chunk annotated with its citation
//   - BatchManifest: Per-document outcome of an ingest batch
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
