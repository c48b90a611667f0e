package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const dims = 16

// fakeEmbedder hashes words into a small bag-of-words vector. The last
// dimension is a constant so no vector is ever all zeros.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	poison string
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.poison != "" && strings.Contains(t, f.poison) {
			return nil, errors.New("upstream unavailable")
		}
		out[i] = vectorize(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func vectorize(text string) []float32 {
	v := make([]float32, dims+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%dims]++
	}
	v[dims] = 0.1
	return v
}

// reply scripts one call of the fake model
type reply struct {
	fragments []string
	// errAfter fails the call once that many fragments were streamed;
	// -1 never fails
	errAfter int
}

// fakeLLM plays back scripted replies, repeating the last one
type fakeLLM struct {
	replies  []reply
	calls    int
	messages [][]llms.MessageContent
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	r := f.replies[min(f.calls, len(f.replies)-1)]
	f.calls++
	f.messages = append(f.messages, messages)

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	full := ""
	for i, frag := range r.fragments {
		if r.errAfter == i {
			return nil, errors.New("model overloaded")
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(frag)); err != nil {
				return nil, err
			}
		}
		full += frag
	}
	if r.errAfter >= len(r.fragments) {
		return nil, errors.New("model overloaded")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// failingStore rejects every upsert
type failingStore struct {
	VectorStore
}

func (failingStore) Upsert(context.Context, []models.EmbeddedChunk) error {
	return models.ErrStore
}

var fastRetry = helper.RetryPolicy{Attempts: 3, BaseDelay: time.Microsecond}

func newStore(t testing.TB) *chromemdb.VectorDBManager {
	t.Helper()
	m, err := chromemdb.NewVectorDBManager(chromemdb.Options{CollectionName: "test", InMemory: true})
	if err != nil {
		t.Fatalf("NewVectorDBManager() error = %v", err)
	}
	return m
}

func docsOf(docs ...models.SourceDocument) iter.Seq2[models.SourceDocument, error] {
	return func(yield func(models.SourceDocument, error) bool) {
		for _, d := range docs {
			var err error
			if d.Pages == nil {
				err = errors.New("unreadable")
			}
			if !yield(d, err) {
				return
			}
		}
	}
}

func result(path string, page, idx int, text string, sim float32) models.SearchResult {
	return models.SearchResult{
		Chunk:      models.Chunk{Text: text, SourcePath: path, PageNumber: page, ChunkIndex: idx},
		Similarity: sim,
	}
}
