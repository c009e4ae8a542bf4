package domain

import "context"

// Chunk is a bounded slice of source text, the unit of embedding and
// retrieval. Its ID is a content hash of (source, offset, text), so
// re-ingesting unchanged content produces the same IDs.
type Chunk struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Source      string `json:"source"`
	StartOffset int    `json:"start_offset"`
}

// Record is the persisted form of an embedded chunk, tagged with the
// collection it belongs to.
type Record struct {
	Chunk
	Vector     []float32 `json:"vector"`
	Collection string    `json:"collection"`
}

// ScoredRecord pairs a stored record with its similarity score
// (higher is more similar).
type ScoredRecord struct {
	Record
	Score float64
}

// Turn is one completed question/answer exchange. Ordering is significant:
// turns are replayed verbatim into subsequent prompts, most recent last.
type Turn struct {
	Question     string
	Answer       string
	RetrievedIDs []string
}

// Embedder converts text into fixed-length numeric vectors, one per input,
// order-preserving. Dimension reports the vector length once known (0 before
// the first call for backends that discover it lazily).
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore persists embedded chunks and answers similarity queries.
// Query results are ordered by descending score, ties broken by ascending
// record ID. Upsert replaces by ID and is idempotent; a batch is applied
// all-or-nothing.
type VectorStore interface {
	Name() string
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]ScoredRecord, error)
}

// Generator produces an answer conditioned on a grounded system prompt, the
// prior conversation turns and the new question.
type Generator interface {
	Complete(ctx context.Context, systemPrompt string, history []Turn, question string) (string, error)
}
