package rag

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// Report summarises one ingestion run
type Report struct {
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
	Chunks  int `json:"chunks"`
	Indexed int `json:"indexed"`
	Batches int `json:"batches"`
}

// FileSummary is the per-file outcome of the chunking stage
type FileSummary struct {
	Path   string
	Pages  int
	Chunks int
	Err    error
}

// Ingestor turns documents into embedded chunks and writes them to the store
// batch by batch.
type Ingestor struct {
	chunker   *parser.Chunker
	embedder  embeddings.Embedder
	store     VectorStore
	batchSize int
	retry     helper.RetryPolicy
	observer  Observer
}

func NewIngestor(chunker *parser.Chunker, embedder embeddings.Embedder, store VectorStore, batchSize int, retry helper.RetryPolicy, observer Observer) *Ingestor {
	if observer == nil {
		observer = NopObserver{}
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Ingestor{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		retry:     retry,
		observer:  observer,
	}
}

// Chunk consumes docs and splits every readable document. Files that failed
// to extract or split are reported and skipped.
func (in *Ingestor) Chunk(docs iter.Seq2[models.SourceDocument, error]) ([]models.Chunk, []FileSummary, Report) {
	var (
		chunks  []models.Chunk
		summary []FileSummary
		report  Report
	)
	for doc, err := range docs {
		report.Files++
		if err == nil {
			var docChunks []models.Chunk
			docChunks, err = in.chunker.Chunk(doc)
			if err == nil {
				in.observer.FileChunked(doc.Path, len(doc.Pages), len(docChunks))
				summary = append(summary, FileSummary{Path: doc.Path, Pages: len(doc.Pages), Chunks: len(docChunks)})
				chunks = append(chunks, docChunks...)
				continue
			}
		}
		report.Skipped++
		in.observer.FileSkipped(doc.Path, err)
		summary = append(summary, FileSummary{Path: doc.Path, Err: err})
	}
	report.Chunks = len(chunks)
	return chunks, summary, report
}

// Index embeds and upserts chunks one batch at a time. The first batch that
// still fails after retries stops the run; earlier batches stay stored.
func (in *Ingestor) Index(ctx context.Context, chunks []models.Chunk, report *Report) error {
	batches := Batches(chunks, in.batchSize)
	report.Batches = len(batches)

	for n, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		vectors, err := embedding.GenerateEmbeddings(ctx, in.embedder, batch, in.retry, func(attempt int, delay time.Duration, err error) {
			in.observer.Retrying(fmt.Sprintf("embed batch %d", n+1), attempt, delay, err)
		})
		if err != nil {
			return fmt.Errorf("batch %d/%d: %w", n+1, len(batches), err)
		}
		if err := in.store.Upsert(ctx, vectors); err != nil {
			return fmt.Errorf("batch %d/%d: %w", n+1, len(batches), err)
		}
		report.Indexed += len(batch)
		in.observer.BatchIndexed(n+1, len(batches), len(batch))
	}

	if err := in.store.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to flush store: %w", models.ErrStore, err)
	}
	return nil
}

// Ingest runs chunking and indexing over docs
func (in *Ingestor) Ingest(ctx context.Context, docs iter.Seq2[models.SourceDocument, error]) (Report, error) {
	chunks, _, report := in.Chunk(docs)
	if len(chunks) == 0 {
		return report, nil
	}
	err := in.Index(ctx, chunks, &report)
	return report, err
}

// Batches splits chunks into consecutive groups of at most size
func Batches(chunks []models.Chunk, size int) [][]models.Chunk {
	if size <= 0 {
		size = 1
	}
	var out [][]models.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, chunks[start:end])
	}
	return out
}
