package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"pdf-rag/internal/models"
)

func newMemoryManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(Options{CollectionName: "test", InMemory: true})
	if err != nil {
		t.Fatalf("NewVectorDBManager() error = %v", err)
	}
	return m
}

func embedded(path string, page, idx int, text string, vec ...float32) models.EmbeddedChunk {
	return models.EmbeddedChunk{
		Chunk:     models.Chunk{Text: text, SourcePath: path, PageNumber: page, ChunkIndex: idx},
		Embedding: vec,
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	m := newMemoryManager(t)
	res, err := m.Query(context.Background(), []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res) != 0 {
		t.Errorf("expected empty result, got %d", len(res))
	}
}

func TestQuery_RanksAndClamps(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)
	err := m.Upsert(ctx, []models.EmbeddedChunk{
		embedded("docs/a.pdf", 0, 0, "x axis", 1, 0, 0),
		embedded("docs/a.pdf", 0, 1, "y axis", 0, 1, 0),
		embedded("docs/b.pdf", 2, 0, "mostly x", 0.9, 0.1, 0),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := m.Query(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results for k=4 over 3 chunks, got %d", len(res))
	}
	order := []string{res[0].Text, res[1].Text, res[2].Text}
	want := []string{"x axis", "mostly x", "y axis"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if res[1].SourcePath != "docs/b.pdf" || res[1].PageNumber != 2 || res[1].ChunkIndex != 0 {
		t.Errorf("metadata not restored: %+v", res[1].Chunk)
	}
	if res[0].Similarity < res[1].Similarity || res[1].Similarity < res[2].Similarity {
		t.Errorf("similarities not descending: %v %v %v", res[0].Similarity, res[1].Similarity, res[2].Similarity)
	}
}

func TestQuery_TieBreakByIngestionOrder(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)
	err := m.Upsert(ctx, []models.EmbeddedChunk{
		embedded("docs/b.pdf", 0, 0, "b0", 0, 0, 1),
		embedded("docs/a.pdf", 1, 0, "a1", 0, 0, 1),
		embedded("docs/a.pdf", 0, 3, "a0-3", 0, 0, 1),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := m.Query(ctx, []float32{0, 0, 1}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	got := []string{res[0].Text, res[1].Text, res[2].Text}
	want := []string{"a0-3", "a1", "b0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestQuery_TiesAtCutoffKeepIngestionOrder(t *testing.T) {
	ctx := context.Background()
	for run := 0; run < 20; run++ {
		m := newMemoryManager(t)
		var batch []models.EmbeddedChunk
		for _, idx := range []int{5, 2, 7, 0, 3, 6, 1, 4} {
			batch = append(batch, embedded("docs/a.pdf", 0, idx, fmt.Sprintf("c%d", idx), 0, 0, 1))
		}
		if err := m.Upsert(ctx, batch); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		res, err := m.Query(ctx, []float32{0, 0, 1}, 2)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(res) != 2 || res[0].Text != "c0" || res[1].Text != "c1" {
			got := make([]string, len(res))
			for i, r := range res {
				got[i] = r.Text
			}
			t.Fatalf("run %d: top 2 = %v, want [c0 c1]", run, got)
		}
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)
	batch := []models.EmbeddedChunk{
		embedded("a.pdf", 0, 0, "one", 1, 0),
		embedded("a.pdf", 0, 1, "two", 0, 1),
	}
	for i := 0; i < 2; i++ {
		if err := m.Upsert(ctx, batch); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if n, _ := m.Count(ctx); n != 2 {
		t.Errorf("Count() = %d after re-ingestion, want 2", n)
	}
}

func TestPersistentReopenAndReset(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	opts := Options{Path: dir, CollectionName: "pdf_knowledge"}

	m, err := NewVectorDBManager(opts)
	if err != nil {
		t.Fatalf("NewVectorDBManager() error = %v", err)
	}
	if err := m.Upsert(ctx, []models.EmbeddedChunk{embedded("a.pdf", 0, 0, "persisted", 1, 1)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reopened, err := NewVectorDBManager(opts)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if n, _ := reopened.Count(ctx); n != 1 {
		t.Fatalf("Count() after reopen = %d, want 1", n)
	}

	if err := reopened.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if n, _ := reopened.Count(ctx); n != 0 {
		t.Errorf("Count() after reset = %d, want 0", n)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	key := "0123456789abcdef0123456789abcdef"
	file := filepath.Join(t.TempDir(), "snapshot.gob.enc")

	src, err := NewVectorDBManager(Options{CollectionName: "c", InMemory: true, EncryptionKey: key})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Upsert(ctx, []models.EmbeddedChunk{
		embedded("a.pdf", 0, 0, "one", 1, 0),
		embedded("a.pdf", 1, 0, "two", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}
	if err := src.Export(ctx, file); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst, err := NewVectorDBManager(Options{CollectionName: "c", InMemory: true, EncryptionKey: key})
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(ctx, file); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n, _ := dst.Count(ctx); n != 2 {
		t.Errorf("Count() after import = %d, want 2", n)
	}
}

func TestExport_RequiresKey(t *testing.T) {
	m := newMemoryManager(t)
	if err := m.Export(context.Background(), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error without encryption key")
	}
}

func TestImport_MissingFile(t *testing.T) {
	m, _ := NewVectorDBManager(Options{CollectionName: "c", InMemory: true, EncryptionKey: "0123456789abcdef0123456789abcdef"})
	err := m.Import(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, models.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}
