// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - KnowledgeBaseStore: Knowledge base, citation record and chunk persistence
//   - RetrievalIndex: Per knowledge base snapshot index (vector + lexical)
//   - PostProcessorPipeline: Turns an indexed document into chunks
//   - KeywordScorer: Lexical scoring of candidate chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, search is keyword-only.
//   - VectorIndex: External stage-one vector search (pgvector). Without it, the snapshot is searched.
//   - EmbeddingCache: Caches embeddings across runs.
//   - StructureExtractor: Format-specific structure extraction used by the CLI.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or postprocessor package
package driven
