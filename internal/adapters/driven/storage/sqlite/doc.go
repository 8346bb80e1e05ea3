// Package sqlite provides the SQLite implementation of driven.KnowledgeBaseStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Knowledge bases own their documents, and documents own their chunks; deletes
// cascade through foreign keys.
//
// # Data Location
//
// By default, the database is stored at ~/.citekit/data/citekit.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. A document's record and chunks are written in one
// transaction.
package sqlite
