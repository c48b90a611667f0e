package parser

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/models"
)

// paragraph, line, word, then hard character cut
var separators = []string{"\n\n", "\n", " ", ""}

// Chunker splits page texts into overlapping, boundary-aware chunks
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
		),
	}
}

// Chunk splits every page of doc. Page numbers are 0-based and chunk indices
// restart at 0 on each page. Blank pages produce no chunks.
func (c *Chunker) Chunk(doc models.SourceDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for pageNum, pageText := range doc.Pages {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		texts, err := c.splitter.SplitText(pageText)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d of %s: %w", pageNum+1, doc.Path, err)
		}

		idx := 0
		for _, text := range texts {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:       text,
				SourcePath: doc.Path,
				PageNumber: pageNum,
				ChunkIndex: idx,
			})
			idx++
		}
	}
	return chunks, nil
}
