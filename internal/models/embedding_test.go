package models

import "testing"

func TestChunkID(t *testing.T) {
	c := Chunk{SourcePath: "docs/a.pdf", PageNumber: 2, ChunkIndex: 5}
	if got, want := c.ID(), "docs/a.pdf#2#5"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
	if c.ID() != ChunkID("docs/a.pdf", 2, 5) {
		t.Error("ID() and ChunkID disagree")
	}
}

func TestCitationString(t *testing.T) {
	tests := []struct {
		name string
		c    Citation
		want string
	}{
		{"first page", Citation{SourcePath: "docs/report.pdf", PageNumber: 0}, "report.pdf (page 1)"},
		{"nested path", Citation{SourcePath: "/tmp/x/notes.pdf", PageNumber: 9}, "notes.pdf (page 10)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortResults(t *testing.T) {
	results := []SearchResult{
		{Chunk: Chunk{Text: "b0", SourcePath: "b.pdf"}, Similarity: 0.5},
		{Chunk: Chunk{Text: "best", SourcePath: "z.pdf"}, Similarity: 0.9},
		{Chunk: Chunk{Text: "a1-0", SourcePath: "a.pdf", PageNumber: 1}, Similarity: 0.5},
		{Chunk: Chunk{Text: "a0-2", SourcePath: "a.pdf", ChunkIndex: 2}, Similarity: 0.5},
	}
	SortResults(results)

	want := []string{"best", "a0-2", "a1-0", "b0"}
	for i, w := range want {
		if results[i].Text != w {
			t.Fatalf("position %d = %q, want %q", i, results[i].Text, w)
		}
	}
}
