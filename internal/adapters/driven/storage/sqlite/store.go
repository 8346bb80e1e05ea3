package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "citekit.db"

// Ensure Store implements the interface.
var _ driven.KnowledgeBaseStore = (*Store)(nil)

// Store is a SQLite-backed knowledge base store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.citekit/data/citekit.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".citekit", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL for concurrent readers; foreign keys must be enabled per connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  func() time.Time { return time.Now().UTC() },
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Knowledge Bases ====================

// CreateKnowledgeBase stores a new knowledge base.
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	now := s.now()
	if kb.CreatedAt.IsZero() {
		kb.CreatedAt = now
	}
	if kb.UpdatedAt.IsZero() {
		kb.UpdatedAt = now
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (name, description, dimensions, embedding_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, kb.Name, kb.Description, kb.Dimensions, kb.EmbeddingModel, kb.CreatedAt, kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting knowledge base: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// GetKnowledgeBase retrieves a knowledge base by name.
func (s *Store) GetKnowledgeBase(ctx context.Context, name string) (*domain.KnowledgeBase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, dimensions, embedding_model, created_at, updated_at
		FROM knowledge_bases WHERE name = ?
	`, name)

	var kb domain.KnowledgeBase
	err := row.Scan(&kb.Name, &kb.Description, &kb.Dimensions, &kb.EmbeddingModel, &kb.CreatedAt, &kb.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning knowledge base: %w", err)
	}
	return &kb, nil
}

// ListKnowledgeBases returns all knowledge bases ordered by name.
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, dimensions, embedding_model, created_at, updated_at
		FROM knowledge_bases ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge bases: %w", err)
	}
	defer rows.Close()

	result := []domain.KnowledgeBase{}
	for rows.Next() {
		var kb domain.KnowledgeBase
		if err := rows.Scan(&kb.Name, &kb.Description, &kb.Dimensions, &kb.EmbeddingModel,
			&kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge base: %w", err)
		}
		result = append(result, kb)
	}
	return result, rows.Err()
}

// UpdateKnowledgeBase saves description and dimension/model pinning.
func (s *Store) UpdateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	kb.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_bases
		SET description = ?, dimensions = ?, embedding_model = ?, updated_at = ?
		WHERE name = ?
	`, kb.Description, kb.Dimensions, kb.EmbeddingModel, kb.UpdatedAt, kb.Name)
	if err != nil {
		return fmt.Errorf("updating knowledge base: %w", err)
	}
	return requireAffected(res)
}

// DeleteKnowledgeBase removes a knowledge base with its documents and chunks.
func (s *Store) DeleteKnowledgeBase(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_bases WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}
	return requireAffected(res)
}

// ==================== Documents ====================

// SaveDocument replaces the record and chunks of a document in one transaction.
func (s *Store) SaveDocument(ctx context.Context, kb string, update driven.DocumentUpdate) error {
	if update.Record == nil {
		return domain.ErrInvalidInput
	}
	record := update.Record

	anchorsJSON, err := json.Marshal(record.Anchors)
	if err != nil {
		return fmt.Errorf("marshalling anchors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_bases WHERE name = ?", kb).
		Scan(&exists); err != nil {
		return fmt.Errorf("checking knowledge base: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	// Replacing the document row cascades to its old chunks.
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE kb_name = ? AND doc_id = ?",
		kb, record.DocID); err != nil {
		return fmt.Errorf("deleting previous version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (kb_name, doc_id, title, author, version, repository_path,
			citation_format, anchors, text_hash, chunk_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, kb, record.DocID, record.Title, record.Author, record.Version, record.RepositoryPath,
		string(record.CitationFormat), string(anchorsJSON), update.TextHash, len(update.Chunks), s.now()); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (kb_name, doc_id, sequence_no, chunk_id, text, token_count, overlap_tokens,
			anchor_refs, primary_anchor, start_offset, end_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range update.Chunks {
		refsJSON, err := json.Marshal(chunk.AnchorRefs)
		if err != nil {
			return fmt.Errorf("marshalling anchor refs: %w", err)
		}
		var embedding []float32
		if i < len(update.Embeddings) {
			embedding = update.Embeddings[i]
		}
		if _, err := stmt.ExecContext(ctx, kb, record.DocID, chunk.SequenceNo, chunk.ChunkID, chunk.Text,
			chunk.TokenCount, chunk.OverlapTokensWithPrev, string(refsJSON), chunk.PrimaryAnchor,
			chunk.StartOffset, chunk.EndOffset, float32SliceToBytes(embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, kb, docID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE kb_name = ? AND doc_id = ?", kb, docID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

const documentColumns = `doc_id, title, author, version, repository_path, citation_format,
	anchors, text_hash, chunk_count, updated_at`

// GetDocument returns the stored state of a document.
func (s *Store) GetDocument(ctx context.Context, kb, docID string) (*domain.IndexedDocument, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+
		" FROM documents WHERE kb_name = ? AND doc_id = ?", kb, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns the stored state of every document in kb ordered by id.
func (s *Store) ListDocuments(ctx context.Context, kb string) ([]domain.IndexedDocument, error) {
	if _, err := s.GetKnowledgeBase(ctx, kb); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+documentColumns+
		" FROM documents WHERE kb_name = ? ORDER BY doc_id", kb)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	result := []domain.IndexedDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

// GetChunks returns a document's chunks ordered by sequence number.
func (s *Store) GetChunks(ctx context.Context, kb, docID string) ([]driven.StoredChunk, error) {
	if _, err := s.GetDocument(ctx, kb, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, sequence_no, text, token_count, overlap_tokens, anchor_refs,
			primary_anchor, start_offset, end_offset, embedding
		FROM chunks WHERE kb_name = ? AND doc_id = ? ORDER BY sequence_no
	`, kb, docID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	result := []driven.StoredChunk{}
	for rows.Next() {
		var sc driven.StoredChunk
		var refsJSON string
		var embeddingBlob []byte
		c := &sc.Chunk
		if err := rows.Scan(&c.ChunkID, &c.SequenceNo, &c.Text, &c.TokenCount, &c.OverlapTokensWithPrev,
			&refsJSON, &c.PrimaryAnchor, &c.StartOffset, &c.EndOffset, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(refsJSON), &c.AnchorRefs); err != nil {
			return nil, fmt.Errorf("unmarshalling anchor refs: %w", err)
		}
		c.DocID = docID
		sc.Embedding = bytesToFloat32Slice(embeddingBlob)
		result = append(result, sc)
	}
	return result, rows.Err()
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.IndexedDocument, error) {
	var record domain.CitationRecord
	var format, anchorsJSON string
	doc := domain.IndexedDocument{Record: &record}

	if err := row.Scan(&record.DocID, &record.Title, &record.Author, &record.Version,
		&record.RepositoryPath, &format, &anchorsJSON, &doc.TextHash, &doc.ChunkCount,
		&doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	record.CitationFormat = domain.Format(format)
	if err := json.Unmarshal([]byte(anchorsJSON), &record.Anchors); err != nil {
		return nil, fmt.Errorf("unmarshalling anchors: %w", err)
	}
	return &doc, nil
}

// requireAffected maps a write that matched no row to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
