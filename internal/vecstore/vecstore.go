// Package vecstore provides the vector index adapter used by the ingestion
// pipeline (writes) and the retriever (reads).
//
// The Index interface mirrors the remote index contract: upsert, similarity
// query, metadata-filtered delete, and describe. The production implementation
// is backed by PostgreSQL + pgvector; tests substitute an in-memory spy.
package vecstore

import "context"

// Metadata is the per-record payload persisted next to each vector.
type Metadata struct {
	TextPreview  string `json:"text_preview"`
	Category     string `json:"category"`
	DocumentPath string `json:"document_path"`
	DocumentHash string `json:"document_hash"`
	PageIndex    int    `json:"page_index"`
}

// Record is the persisted unit in the index.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single query result, ordered by decreasing similarity.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Stats describes the index contents.
type Stats struct {
	TotalVectorCount int64
	Dimension        int
}

// Index is the vector index contract. Implementations must honour the
// caller's context deadline on every call.
type Index interface {
	// Upsert inserts or replaces records by ID. Each underlying request
	// stays within the provider's batch limits.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK nearest neighbours by cosine similarity,
	// ordered by decreasing score.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// DeleteByDocument removes records for the given document path.
	// When exceptHash is non-empty, records carrying that hash survive;
	// this is how superseded document versions are retired.
	DeleteByDocument(ctx context.Context, path, exceptHash string) error

	// Describe reports record count and configured dimension.
	Describe(ctx context.Context) (Stats, error)
}
