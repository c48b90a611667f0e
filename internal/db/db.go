package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string          `bun:"id,pk"`
	Collection    string          `bun:"collection,notnull"`
	Content       string          `bun:"content,notnull"`
	SourcePath    string          `bun:"source_path,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Similarity    float64         `bun:"similarity,scanonly"`
}

// Store keeps chunks in Postgres with the pgvector extension
type Store struct {
	db         *bun.DB
	collection string
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore connects to the database and makes sure the table exists
func NewStore(ctx context.Context, dsn, collection string, debug bool) (*Store, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to database: %v", models.ErrStore, err)
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize database: %v", models.ErrStore, err)
	}
	return &Store{db: db, collection: collection}, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Upsert writes one batch in a single transaction
func (s *Store) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = toDocument(s.collection, c)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&docs).
			On("CONFLICT (id) DO UPDATE").
			Set("content = EXCLUDED.content").
			Set("embedding = EXCLUDED.embedding").
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store documents: %v", models.ErrStore, err)
	}
	return nil
}

// Query orders by cosine distance, then by ingestion order
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(embedding)

	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("id", "content", "source_path", "page_number", "chunk_index").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", vec).
		Where("collection = ?", s.collection).
		OrderExpr("embedding <=> ?", vec).
		Order("source_path", "page_number", "chunk_index").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search documents: %v", models.ErrStore, err)
	}

	out := make([]models.SearchResult, len(docs))
	for i, d := range docs {
		out[i] = fromDocument(d)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Where("collection = ?", s.collection).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count documents: %v", models.ErrStore, err)
	}
	return n, nil
}

// Flush is a no-op, every batch is committed by Upsert
func (s *Store) Flush(ctx context.Context) error {
	return nil
}

// Reset removes the collection's rows
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.NewDelete().Model((*Document)(nil)).Where("collection = ?", s.collection).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to clear documents: %v", models.ErrStore, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toDocument(collection string, c models.EmbeddedChunk) Document {
	return Document{
		ID:         collection + ":" + c.ID(),
		Collection: collection,
		Content:    c.Text,
		SourcePath: c.SourcePath,
		PageNumber: c.PageNumber,
		ChunkIndex: c.ChunkIndex,
		Embedding:  pgvector.NewVector(c.Embedding),
	}
}

func fromDocument(d Document) models.SearchResult {
	return models.SearchResult{
		Chunk: models.Chunk{
			Text:       d.Content,
			SourcePath: d.SourcePath,
			PageNumber: d.PageNumber,
			ChunkIndex: d.ChunkIndex,
		},
		Similarity: float32(d.Similarity),
	}
}
