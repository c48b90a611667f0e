package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-rag/internal/models"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "pdfrag" {
		t.Errorf("Use = %q, want %q", cmd.Use, "pdfrag")
	}

	for _, name := range []string{"config", "env-file"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}

	var subs []string
	for _, c := range cmd.Commands() {
		subs = append(subs, c.Name())
	}
	for _, want := range []string{"ingest", "chat"} {
		found := false
		for _, s := range subs {
			found = found || s == want
		}
		if !found {
			t.Errorf("subcommand %q missing from %v", want, subs)
		}
	}
}

func TestIngestCmd_Flags(t *testing.T) {
	cmd := NewIngestCmd()
	tests := []struct {
		name, def string
	}{
		{"docs", ""},
		{"reset", "false"},
		{"dry-run", "false"},
	}
	for _, tt := range tests {
		f := cmd.Flags().Lookup(tt.name)
		if f == nil {
			t.Fatalf("--%s flag not found", tt.name)
		}
		if f.DefValue != tt.def {
			t.Errorf("--%s default = %q, want %q", tt.name, f.DefValue, tt.def)
		}
	}
	if cmd.RunE == nil {
		t.Error("RunE should be set")
	}
}

func TestChatCmd_Flags(t *testing.T) {
	cmd := NewChatCmd()
	if cmd.Flags().Lookup("snapshot") == nil {
		t.Error("--snapshot flag not found")
	}
	if !strings.Contains(cmd.Long, "exit, quit or q") {
		t.Error("Long description should name the exit keywords")
	}
}

// execute runs the root command inside a scratch folder
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	old := logDir
	logDir = dir
	t.Cleanup(func() { logDir = old })

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PERSIST_DIR", filepath.Join(dir, "db"))

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(dir, "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngest_DryRun(t *testing.T) {
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "notes.txt"), []byte("Chromem keeps vectors on disk."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "ignored.csv"), []byte("a,b"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOC_EXTENSIONS", ".txt")

	out, err := execute(t, "ingest", "--dry-run", "--docs", docs)
	if err != nil {
		t.Fatalf("ingest --dry-run error = %v", err)
	}
	if !strings.Contains(out, "notes.txt") || strings.Contains(out, "ignored.csv") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, `"chunks": 1`) {
		t.Errorf("report missing from output:\n%s", out)
	}
}

func TestIngest_MissingDocsFolder(t *testing.T) {
	_, err := execute(t, "ingest", "--docs", filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIngest_InvalidConfig(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "abc")
	_, err := execute(t, "ingest", "--dry-run")
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestChat_MissingPersistDir(t *testing.T) {
	_, err := execute(t, "chat")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
