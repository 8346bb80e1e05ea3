package domain

import "time"

// DocumentStatus is the outcome of one document in an ingest batch.
type DocumentStatus string

// Available document statuses.
const (
	// StatusPending means the document has not finished yet.
	StatusPending DocumentStatus = "pending"

	// StatusIndexed means the full chunk set was committed.
	StatusIndexed DocumentStatus = "indexed"

	// StatusUnchanged means the stored version already matches.
	StatusUnchanged DocumentStatus = "unchanged"

	// StatusFailed means processing failed; nothing was committed.
	StatusFailed DocumentStatus = "failed"

	// StatusCancelled means the document was cancelled before commit.
	StatusCancelled DocumentStatus = "cancelled"

	// StatusRejected means the queue was full under the reject policy.
	StatusRejected DocumentStatus = "rejected"
)

// IsTerminal reports whether the status is final.
func (s DocumentStatus) IsTerminal() bool {
	return s != StatusPending
}

// DocumentOutcome is the detailed result for one document.
type DocumentOutcome struct {
	Status     DocumentStatus `json:"status" yaml:"status"`
	ChunkCount int            `json:"chunk_count,omitempty" yaml:"chunk_count,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchManifest reports every document of an ingest batch.
type BatchManifest struct {
	// BatchID identifies the batch.
	BatchID string `json:"batch_id" yaml:"batch_id"`

	// KnowledgeBase is the target knowledge base.
	KnowledgeBase string `json:"knowledge_base" yaml:"knowledge_base"`

	// Documents maps doc_id to its outcome.
	Documents map[string]DocumentOutcome `json:"documents" yaml:"documents"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// NewBatchManifest creates a manifest with every document pending.
func NewBatchManifest(batchID, kb string, docIDs []string) *BatchManifest {
	m := &BatchManifest{
		BatchID:       batchID,
		KnowledgeBase: kb,
		Documents:     make(map[string]DocumentOutcome, len(docIDs)),
		StartedAt:     time.Now(),
	}
	for _, id := range docIDs {
		m.Documents[id] = DocumentOutcome{Status: StatusPending}
	}
	return m
}

// Statuses returns the {doc_id: status} view of the manifest.
func (m *BatchManifest) Statuses() map[string]DocumentStatus {
	out := make(map[string]DocumentStatus, len(m.Documents))
	for id, o := range m.Documents {
		out[id] = o.Status
	}
	return out
}

// Count returns how many documents ended with status.
func (m *BatchManifest) Count(status DocumentStatus) int {
	n := 0
	for _, o := range m.Documents {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any document failed or was rejected.
func (m *BatchManifest) Failed() bool {
	return m.Count(StatusFailed) > 0 || m.Count(StatusRejected) > 0
}
