package commands

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

// vectorStore is what the commands need on top of the pipeline's store
type vectorStore interface {
	rag.VectorStore
	Reset(ctx context.Context) error
	Close() error
}

// openStore opens the configured store. With create unset a missing chromem
// folder is an error, so chat does not silently start on an empty index.
func openStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, create bool) (vectorStore, error) {
	if cfg.VectorStore == config.StorePgvector {
		s, err := db.NewStore(ctx, cfg.DatabaseURL, cfg.CollectionName, cfg.DatabaseDebug)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	if create {
		if err := helper.CreateFolder(cfg.PersistDir); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
		}
	} else if !helper.FolderExists(cfg.PersistDir) {
		return nil, fmt.Errorf("%w: vector store folder %s does not exist", models.ErrNotFound, cfg.PersistDir)
	}

	m, err := chromemdb.NewVectorDBManager(chromemOptions(cfg, embedder, false))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// openSnapshot loads an exported collection into memory
func openSnapshot(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, file string) (vectorStore, error) {
	m, err := chromemdb.NewVectorDBManager(chromemOptions(cfg, embedder, true))
	if err != nil {
		return nil, err
	}
	if err := m.Import(ctx, file); err != nil {
		return nil, err
	}
	return m, nil
}

func chromemOptions(cfg *config.Config, embedder embeddings.Embedder, inMemory bool) chromemdb.Options {
	return chromemdb.Options{
		Path:           cfg.PersistDir,
		CollectionName: cfg.CollectionName,
		InMemory:       inMemory,
		Compress:       cfg.Compress,
		EncryptionKey:  cfg.EncryptionKey,
		EmbeddingFunc:  embedding.EmbeddingFunc(embedder),
	}
}
