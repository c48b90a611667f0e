package rag

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// Retriever finds the chunks most similar to a query
type Retriever struct {
	embedder      embeddings.Embedder
	store         VectorStore
	k             int
	minSimilarity float32
	retry         helper.RetryPolicy
	observer      Observer
}

func NewRetriever(embedder embeddings.Embedder, store VectorStore, k int, minSimilarity float64, retry helper.RetryPolicy, observer Observer) *Retriever {
	if observer == nil {
		observer = NopObserver{}
	}
	if k <= 0 {
		k = 1
	}
	return &Retriever{
		embedder:      embedder,
		store:         store,
		k:             k,
		minSimilarity: float32(minSimilarity),
		retry:         retry,
		observer:      observer,
	}
}

// Count returns the number of chunks in the collection
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Retrieve returns at most k chunks ordered by similarity. A k outside
// 1..RetrievalK falls back to the configured value. An empty collection is
// not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 || k > r.k {
		k = r.k
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		r.observer.Retrieved(query, 0)
		return []models.SearchResult{}, nil
	}
	k = min(k, count)

	vector, err := embedding.EmbedQuery(ctx, r.embedder, query, r.retry, func(attempt int, delay time.Duration, err error) {
		r.observer.Retrying("embed query", attempt, delay, err)
	})
	if err != nil {
		return nil, err
	}

	results, err := r.store.Query(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, res := range results {
		if res.Similarity < r.minSimilarity {
			continue
		}
		out = append(out, res)
	}
	models.SortResults(out)
	if len(out) > k {
		out = out[:k]
	}

	r.observer.Retrieved(query, len(out))
	return out, nil
}
