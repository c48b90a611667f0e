package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// RetryFunc is told about every failed attempt before the next one
type RetryFunc func(attempt int, delay time.Duration, err error)

// NewEmbedder creates the embedder for the configured provider. Texts are
// sent BatchSize at a time.
func NewEmbedder(cfg *config.Config) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.EmbeddingModel,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.OllamaURL),
			ollama.WithModel(cfg.EmbeddingModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		client = llm
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// GenerateEmbeddings embeds one batch of chunks with a single service call,
// retrying the whole batch on failure. The result keeps the input order.
func GenerateEmbeddings(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk, policy helper.RetryPolicy, onRetry RetryFunc) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := helper.Retry(ctx, policy, onRetry, func(ctx context.Context) error {
		v, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("embedding service returned %d vectors for %d texts", len(v), len(texts))
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed batch: %w", models.ErrExternalService, err)
	}

	out := make([]models.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = models.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
	}
	return out, nil
}

// EmbedQuery embeds a single query text with the same retry policy
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, text string, policy helper.RetryPolicy, onRetry RetryFunc) ([]float32, error) {
	var vector []float32
	err := helper.Retry(ctx, policy, onRetry, func(ctx context.Context) error {
		v, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return fmt.Errorf("embedding service returned an empty vector")
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", models.ErrExternalService, err)
	}
	return vector, nil
}

// EmbeddingFunc adapts an embedder to chromem's embedding function
func EmbeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
