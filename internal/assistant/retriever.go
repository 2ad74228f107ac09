package assistant

import (
	"context"
	"fmt"

	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// Embedder is the query embedding dependency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// maxTopK is the hard ceiling on results returned to the prompt, independent
// of configuration.
const maxTopK = 20

// Retriever finds the document excerpts most relevant to a question.
// It over-fetches fetchK candidates and keeps the best topK, leaving room for
// future re-ranking without another index round trip.
type Retriever struct {
	embedder Embedder
	index    vecstore.Index
	logger   log.Logger
	topK     int
	fetchK   int
}

// NewRetriever creates a retriever. fetchK must be at least topK.
func NewRetriever(embedder Embedder, index vecstore.Index, logger log.Logger, topK, fetchK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if topK < 1 || topK > maxTopK {
		return nil, fmt.Errorf("topK %d out of range [1,%d]", topK, maxTopK)
	}
	if fetchK < topK {
		return nil, fmt.Errorf("fetchK %d must be at least topK %d", fetchK, topK)
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
		topK:     topK,
		fetchK:   fetchK,
	}, nil
}

// Retrieve embeds the question and returns the best matches. topK and fetchK
// override the configured defaults when positive; topK is clamped to the hard
// ceiling and fetchK is raised to at least the effective topK.
//
// Embedding and index failures both degrade to an empty result with a
// warning: answering from general knowledge with the standard disclaimer
// beats failing the request. The caller decides whether empty context is
// acceptable.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK, fetchK int) ([]vecstore.Match, error) {
	k := r.topK
	if topK > 0 {
		k = topK
	}
	if k > maxTopK {
		k = maxTopK
	}
	fk := r.fetchK
	if fetchK > 0 {
		fk = fetchK
	}
	if fk < k {
		fk = k
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.logger.Warn("question embedding failed, answering without context", "error", err)
		return nil, nil
	}

	matches, err := r.index.Query(ctx, vector, fk)
	if err != nil {
		r.logger.Warn("index query failed, answering without context", "error", err)
		return nil, nil
	}

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
