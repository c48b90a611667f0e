// Package rag wires the ingestion and question answering stages together.
// It does not log on its own; progress is reported to an Observer.
package rag

import (
	"context"

	"pdf-rag/internal/models"
)

// VectorStore is the persistent collection the pipeline writes to and
// searches. Both the chromem and the pgvector stores implement it.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Flush(ctx context.Context) error
}
