package models

import (
	"fmt"
	"path/filepath"
	"sort"
)

// SourceDocument is a scanned file and its extracted page texts
type SourceDocument struct {
	Path  string
	Pages []string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
}

// ID is the upsert key of the chunk. Re-ingesting the same file overwrites
// entries instead of duplicating them.
func (c Chunk) ID() string {
	return ChunkID(c.SourcePath, c.PageNumber, c.ChunkIndex)
}

func ChunkID(sourcePath string, pageNumber, chunkIndex int) string {
	return fmt.Sprintf("%s#%d#%d", sourcePath, pageNumber, chunkIndex)
}

// EmbeddedChunk is a chunk together with its embedding vector
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// SearchResult is a stored chunk ranked against a query
type SearchResult struct {
	Chunk
	Similarity float32
}

// Citation points at the page a retrieved chunk came from
type Citation struct {
	SourcePath string `json:"source_path"`
	PageNumber int    `json:"page_number"`
}

// String renders the citation with a 1-based page number
func (c Citation) String() string {
	return fmt.Sprintf("%s (page %d)", filepath.Base(c.SourcePath), c.PageNumber+1)
}

// Turn is one question/answer exchange of a chat session
type Turn struct {
	Query  string
	Answer string
}

// SortResults orders by descending similarity. Equal scores keep ingestion
// order, which is source path, then page, then chunk index.
func SortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.SourcePath != b.SourcePath {
			return a.SourcePath < b.SourcePath
		}
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}
