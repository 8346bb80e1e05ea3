package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
	"github.com/custodia-labs/citekit/internal/extractors"
)

// mockSearchService returns a canned response and records the request.
type mockSearchService struct {
	response *domain.SearchResponse
	err      error

	kb    string
	query string
	opts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	kb, query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.kb, m.query, m.opts = kb, query, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		return m.response, nil
	}
	return &domain.SearchResponse{
		Query:         query,
		KnowledgeBase: kb,
		Results: []domain.SearchResult{
			{
				ChunkID:      "guide.md_chunk_0",
				DocID:        "guide.md",
				Score:        0.87,
				VectorScore:  0.8,
				KeywordScore: 1,
				CitationKey:  "guide.md#install",
				CitationText: "Guide, Install, lines 1-12",
				Text:         "Run the installer and follow the prompts.",
			},
		},
	}, nil
}

// mockIngestService records ingested documents.
type mockIngestService struct {
	mu        sync.Mutex
	docs      []domain.SourceDocument
	kb        string
	removed   []string
	err       error
	closed    bool
	previewed *domain.SourceDocument
}

func (m *mockIngestService) Start(
	ctx context.Context,
	kb string,
	docs []domain.SourceDocument,
) (driving.Batch, error) {
	manifest, err := m.Ingest(ctx, kb, docs)
	if err != nil {
		return nil, err
	}
	return &mockBatch{manifest: manifest}, nil
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	kb string,
	docs []domain.SourceDocument,
) (*domain.BatchManifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.kb = kb
	m.docs = append(m.docs, docs...)

	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].DocID
	}
	manifest := domain.NewBatchManifest("batch-1", kb, ids)
	for _, id := range ids {
		manifest.Documents[id] = domain.DocumentOutcome{Status: domain.StatusIndexed, ChunkCount: 2}
	}
	return manifest, nil
}

func (m *mockIngestService) Preview(
	_ context.Context,
	doc *domain.SourceDocument,
) (*domain.CitationRecord, []domain.Chunk, error) {
	m.previewed = doc
	if m.err != nil {
		return nil, nil, m.err
	}
	record := &domain.CitationRecord{
		DocID:          doc.DocID,
		Title:          doc.Metadata.Title,
		CitationFormat: domain.FormatGeneric,
	}
	chunks := []domain.Chunk{
		{
			ChunkID:    domain.ChunkID(doc.DocID, 0),
			DocID:      doc.DocID,
			Text:       doc.Text,
			TokenCount: 4,
		},
	}
	return record, chunks, nil
}

func (m *mockIngestService) Remove(_ context.Context, kb, docID string) error {
	m.removed = append(m.removed, kb+"/"+docID)
	return m.err
}

func (m *mockIngestService) Close() error {
	m.closed = true
	return nil
}

type mockBatch struct {
	manifest *domain.BatchManifest
}

func (b *mockBatch) ID() string { return b.manifest.BatchID }

func (b *mockBatch) Cancel(string) bool { return false }

func (b *mockBatch) CancelAll() {}

func (b *mockBatch) Wait() *domain.BatchManifest { return b.manifest }

// mockKnowledgeBaseService keeps knowledge bases in a map.
type mockKnowledgeBaseService struct {
	kbs map[string]domain.KnowledgeBase
	err error
}

func (m *mockKnowledgeBaseService) Create(_ context.Context, name, description string) (*domain.KnowledgeBase, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.kbs[name]; ok {
		return nil, domain.ErrAlreadyExists
	}
	kb := domain.KnowledgeBase{Name: name, Description: description, Dimensions: 768, EmbeddingModel: "hash"}
	m.kbs[name] = kb
	return &kb, nil
}

func (m *mockKnowledgeBaseService) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.KnowledgeBase, 0, len(m.kbs))
	for _, kb := range m.kbs {
		out = append(out, kb)
	}
	return out, nil
}

func (m *mockKnowledgeBaseService) Status(_ context.Context, name string) (*domain.KnowledgeBaseStatus, error) {
	kb, ok := m.kbs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.KnowledgeBaseStatus{KnowledgeBase: kb, DocumentCount: 3, ChunkCount: 17}, nil
}

func (m *mockKnowledgeBaseService) Delete(_ context.Context, name string) error {
	if _, ok := m.kbs[name]; !ok {
		return domain.ErrNotFound
	}
	delete(m.kbs, name)
	return nil
}

// mockCitationService serves one stored document.
type mockCitationService struct {
	record *domain.CitationRecord
	chunks []domain.Chunk
}

func (m *mockCitationService) GetRecord(_ context.Context, _, docID string) (*domain.CitationRecord, error) {
	if m.record == nil || m.record.DocID != docID {
		return nil, domain.ErrNotFound
	}
	return m.record, nil
}

func (m *mockCitationService) GetChunks(_ context.Context, _, docID string) ([]domain.Chunk, error) {
	if m.record == nil || m.record.DocID != docID {
		return nil, domain.ErrNotFound
	}
	return m.chunks, nil
}

func (m *mockCitationService) Cite(_ context.Context, _, chunkID string) (string, error) {
	for _, c := range m.chunks {
		if c.ChunkID == chunkID {
			return m.record.CitationText(c.PrimaryAnchor), nil
		}
	}
	return "", domain.ErrNotFound
}

// mockSettingsService holds settings in memory.
type mockSettingsService struct {
	settings domain.AppSettings
	set      map[string]string
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(values map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.set = values
	return nil
}

func (m *mockSettingsService) Validate() error {
	if m.err != nil {
		return m.err
	}
	return m.settings.Validate()
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return *domain.DefaultAppSettings()
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	search        *mockSearchService
	ingest        *mockIngestService
	knowledgeBase *mockKnowledgeBaseService
	citation      *mockCitationService
	settings      *mockSettingsService
}

var currentTestServices *testServices

// setupTestServices installs mock services and returns a cleanup function.
func setupTestServices() func() {
	record := &domain.CitationRecord{
		DocID:          "guide.md",
		Title:          "Guide",
		CitationFormat: domain.FormatMarkdown,
		Anchors: []domain.CitationAnchor{
			{
				CitationKey: "guide.md#install",
				Element: domain.StructuralElement{
					Type:      domain.ElementHeader,
					Name:      "Install",
					Level:     2,
					StartLine: domain.IntPtr(1),
					EndLine:   domain.IntPtr(12),
				},
			},
		},
	}

	ts := &testServices{
		search: &mockSearchService{},
		ingest: &mockIngestService{},
		knowledgeBase: &mockKnowledgeBaseService{
			kbs: map[string]domain.KnowledgeBase{
				"docs": {Name: "docs", Description: "Product docs", Dimensions: 768, EmbeddingModel: "hash"},
			},
		},
		citation: &mockCitationService{
			record: record,
			chunks: []domain.Chunk{
				{
					ChunkID:       "guide.md_chunk_0",
					DocID:         "guide.md",
					Text:          "Run the installer.",
					TokenCount:    4,
					AnchorRefs:    []string{"guide.md#install"},
					PrimaryAnchor: "guide.md#install",
				},
			},
		},
		settings: &mockSettingsService{settings: *domain.DefaultAppSettings()},
	}
	currentTestServices = ts

	SetServices(&Services{
		Search:        ts.search,
		Ingest:        ts.ingest,
		KnowledgeBase: ts.knowledgeBase,
		Citation:      ts.citation,
		Settings:      ts.settings,
		Extractors:    extractors.NewDefaultRegistry(),
	})

	return func() {
		SetServices(nil)
		currentTestServices = nil
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	}
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// writeFile creates a file under dir and returns its path.
func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		panic(err)
	}
	return path
}
