package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
)

var (
	ingestDocs   string
	ingestReset  bool
	ingestDryRun bool
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the documents folder into the vector store",
		Long: `Scan the documents folder, split every page into overlapping chunks,
embed them in batches and store them in the vector store collection.

Re-running ingest overwrites chunks that are already stored.

Examples:
  pdfrag ingest
  pdfrag ingest --docs ./manuals
  pdfrag ingest --reset
  pdfrag ingest --dry-run`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestDocs, "docs", "", "Documents folder (overrides DOCS_DIR)")
	cmd.Flags().BoolVar(&ingestReset, "reset", false, "Drop the collection before indexing")
	cmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Parse and chunk only, do not embed or store")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	closer, err := helper.SetupLogger(logPath("ingest.log"), cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	docsDir := cfg.DocsDir
	if ingestDocs != "" {
		docsDir = ingestDocs
	}

	paths, err := parser.Scan(docsDir, cfg.Extensions)
	if err != nil {
		log.Error().Err(err).Str("docs_dir", docsDir).Msg("Error scanning documents folder")
		return err
	}
	if len(paths) == 0 {
		log.Warn().Strs("extensions", cfg.Extensions).Msgf("No documents found in %s", docsDir)
		return nil
	}
	log.Info().Int("files", len(paths)).Msgf("Found %d documents in %s", len(paths), docsDir)

	chunker := parser.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	retry := helper.RetryPolicy{Attempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay}
	observer := rag.LogObserver{Logger: log.Logger}

	if ingestDryRun {
		in := rag.NewIngestor(chunker, nil, nil, cfg.BatchSize, retry, observer)
		_, summary, report := in.Chunk(parser.Documents(paths))
		printSummary(cmd.OutOrStdout(), summary)
		helper.PrettyPrint(cmd.OutOrStdout(), report)
		return nil
	}

	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, embedder, true)
	if err != nil {
		log.Error().Err(err).Msg("Error opening vector store")
		return err
	}
	defer store.Close()

	if ingestReset {
		if err := store.Reset(ctx); err != nil {
			return err
		}
		log.Info().Str("collection", cfg.CollectionName).Msg("Collection reset")
	}

	in := rag.NewIngestor(chunker, embedder, store, cfg.BatchSize, retry, observer)
	report, err := in.Ingest(ctx, parser.Documents(paths))
	log.Info().Interface("report", report).Msg("Ingestion finished")
	if err != nil {
		log.Error().Err(err).Msg("Ingestion stopped")
		return fmt.Errorf("ingestion stopped after %d of %d chunks: %w", report.Indexed, report.Chunks, err)
	}

	if cfg.ExportFile != "" {
		m, ok := store.(*chromemdb.VectorDBManager)
		if !ok {
			log.Warn().Str("vector_store", cfg.VectorStore).Msg("EXPORT_FILE is only supported by the chromem store")
		} else if err := m.Export(ctx, cfg.ExportFile); err != nil {
			return err
		} else {
			log.Info().Str("file", cfg.ExportFile).Msg("Collection exported")
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Indexed %d chunks from %d files into %q (%d skipped)\n",
		report.Indexed, report.Files-report.Skipped, cfg.CollectionName, report.Skipped)
	return nil
}

func printSummary(w io.Writer, summary []rag.FileSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tPAGES\tCHUNKS\tSTATUS")
	for _, s := range summary {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", filepath.Base(s.Path), s.Pages, s.Chunks, status)
	}
	tw.Flush()
}
