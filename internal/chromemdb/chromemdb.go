package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// meta data will have source filename, page number, chunk index

// Options configures where and how the collection is kept
type Options struct {
	Path           string
	CollectionName string
	InMemory       bool
	Compress       bool
	EncryptionKey  string
	// EmbeddingFunc is only used by chromem for documents or queries
	// that come without a precomputed embedding
	EmbeddingFunc chromem.EmbeddingFunc
}

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embeddingFunc  chromem.EmbeddingFunc
	dbPath         string
	compress       bool
	encryptionKey  string
}

// NewVectorDBManager opens the database and gets or creates the collection
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open database at %s: %v", models.ErrStore, opts.Path, err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: opts.CollectionName,
		embeddingFunc:  opts.EmbeddingFunc,
		dbPath:         opts.Path,
		compress:       opts.Compress,
		encryptionKey:  opts.EncryptionKey,
	}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create/get collection: %v", models.ErrStore, err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds the chunks, replacing entries that share a chunk id
func (m *VectorDBManager) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID(),
			Content:   c.Text,
			Metadata:  CreateMetadata(c.Chunk),
			Embedding: c.Embedding,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: failed to add documents: %v", models.ErrStore, err)
	}
	return nil
}

// Query returns up to k chunks ordered by similarity to embedding.
// An empty collection yields an empty result.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	count := m.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	// chromem picks among equal similarities in map order, so rank the
	// whole collection and cut after the tie-break
	results, err := m.collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %v", models.ErrStore, err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.SearchResult{
			Chunk:      chunkFromResult(r),
			Similarity: r.Similarity,
		})
	}
	models.SortResults(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns the number of stored chunks
func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Flush is a no-op: the persistent database writes every document to disk as
// it is added.
func (m *VectorDBManager) Flush(ctx context.Context) error {
	return nil
}

// Reset drops the collection and starts an empty one
func (m *VectorDBManager) Reset(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("%w: failed to drop collection: %v", models.ErrStore, err)
	}
	_, err := m.GetOrCreateCollection()
	return err
}

func (m *VectorDBManager) Close() error {
	return nil
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context, filePath string) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if filePath == "" {
		return fmt.Errorf("export file path is required")
	}

	log.Debug().Str("collection", m.collectionName).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("%w: failed to export database: %v", models.ErrStore, err)
	}
	return nil
}

// import from file
func (m *VectorDBManager) Import(ctx context.Context, filePath string) error {
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("%w: failed to import database: %v", models.ErrStore, err)
	}
	// the import replaces the collection object
	c := m.db.GetCollection(m.collectionName, m.embeddingFunc)
	if c == nil {
		return fmt.Errorf("%w: collection %q not found in %s", models.ErrNotFound, m.collectionName, filePath)
	}
	m.collection = c
	return nil
}

// CreateMetadata builds the metadata stored next to a chunk
func CreateMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		models.MetaSourcePath: c.SourcePath,
		models.MetaFilename:   filepath.Base(c.SourcePath),
		models.MetaPageNumber: strconv.Itoa(c.PageNumber),
		models.MetaChunkIndex: strconv.Itoa(c.ChunkIndex),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[models.MetaPageNumber])
	idx, _ := strconv.Atoi(r.Metadata[models.MetaChunkIndex])
	return models.Chunk{
		Text:       r.Content,
		SourcePath: r.Metadata[models.MetaSourcePath],
		PageNumber: page,
		ChunkIndex: idx,
	}
}
