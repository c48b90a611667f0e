package rag

import (
	"context"
	"errors"
	"testing"

	"pdf-rag/internal/models"
)

func seededStore(t *testing.T, texts ...string) VectorStore {
	t.Helper()
	store := newStore(t)
	chunks := make([]models.EmbeddedChunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.EmbeddedChunk{
			Chunk:     models.Chunk{Text: text, SourcePath: "docs/a.pdf", PageNumber: i, ChunkIndex: 0},
			Embedding: vectorize(text),
		}
	}
	if err := store.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return store
}

func TestRetrieve_Ranking(t *testing.T) {
	store := seededStore(t, "gamma delta", "alpha", "epsilon zeta")
	r := NewRetriever(&fakeEmbedder{}, store, 4, 0, fastRetry, nil)

	res, err := r.Retrieve(context.Background(), "alpha", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results for k=4 over 3 chunks, got %d", len(res))
	}
	if res[0].Text != "alpha" || res[0].PageNumber != 1 {
		t.Errorf("best match = %+v", res[0])
	}
	for i := 1; i < len(res); i++ {
		if res[i].Similarity > res[i-1].Similarity {
			t.Errorf("results not ordered by similarity: %v > %v", res[i].Similarity, res[i-1].Similarity)
		}
	}
}

func TestRetrieve_KFallsBackToConfigured(t *testing.T) {
	store := seededStore(t, "one", "two", "three", "four")
	r := NewRetriever(&fakeEmbedder{}, store, 2, 0, fastRetry, nil)

	for _, k := range []int{0, -1, 10} {
		res, err := r.Retrieve(context.Background(), "one", k)
		if err != nil {
			t.Fatalf("Retrieve(k=%d) error = %v", k, err)
		}
		if len(res) != 2 {
			t.Errorf("Retrieve(k=%d) returned %d results, want 2", k, len(res))
		}
	}

	res, _ := r.Retrieve(context.Background(), "one", 1)
	if len(res) != 1 {
		t.Errorf("Retrieve(k=1) returned %d results", len(res))
	}
}

func TestRetrieve_EmptyCollection(t *testing.T) {
	emb := &fakeEmbedder{}
	r := NewRetriever(emb, newStore(t), 4, 0, fastRetry, nil)

	res, err := r.Retrieve(context.Background(), "anything", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if res == nil || len(res) != 0 {
		t.Errorf("expected empty slice, got %v", res)
	}
	if emb.Calls() != 0 {
		t.Errorf("query was embedded for an empty collection")
	}
}

func TestRetrieve_MinSimilarity(t *testing.T) {
	store := seededStore(t, "alpha", "gamma delta")
	r := NewRetriever(&fakeEmbedder{}, store, 4, 0.99, fastRetry, nil)

	res, err := r.Retrieve(context.Background(), "alpha", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res) != 1 || res[0].Text != "alpha" {
		t.Errorf("results = %+v", res)
	}
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	store := seededStore(t, "alpha")
	emb := &fakeEmbedder{poison: "boom"}
	r := NewRetriever(emb, store, 4, 0, fastRetry, nil)

	_, err := r.Retrieve(context.Background(), "boom", 4)
	if !errors.Is(err, models.ErrExternalService) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
	if emb.Calls() != fastRetry.Attempts {
		t.Errorf("embedding calls = %d, want %d", emb.Calls(), fastRetry.Attempts)
	}
}
