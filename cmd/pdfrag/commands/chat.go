package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chat"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/rag"
)

var chatSnapshot string

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about the indexed documents",
		Long: `Start an interactive session. Every answer is followed by the pages it
was based on and the time it took. Type exit, quit or q to leave.

Examples:
  pdfrag chat
  pdfrag chat --snapshot ./export/knowledge.gob.enc`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().StringVar(&chatSnapshot, "snapshot", "", "Chat over an exported chromem collection instead of the persist folder")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return startupError(cmd.ErrOrStderr(), err)
	}

	// the transcript owns the terminal, logs only go to the file
	closer, err := helper.SetupLogger(logPath("chat.log"), nil, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		return startupError(cmd.ErrOrStderr(), err)
	}

	var store vectorStore
	if chatSnapshot != "" {
		store, err = openSnapshot(ctx, cfg, embedder, chatSnapshot)
	} else {
		store, err = openStore(ctx, cfg, embedder, false)
	}
	if err != nil {
		log.Error().Err(err).Msg("Chat initialization failed")
		return startupError(cmd.ErrOrStderr(), err)
	}
	defer store.Close()

	llm, err := llmservice.NewLLM(cfg)
	if err != nil {
		return startupError(cmd.ErrOrStderr(), err)
	}

	observer := rag.LogObserver{Logger: log.Logger}
	retry := helper.RetryPolicy{Attempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay}
	retriever := rag.NewRetriever(embedder, store, cfg.RetrievalK, cfg.MinSimilarity, retry, observer)
	generator := rag.NewGenerator(llm, rag.GeneratorOptions{
		Temperature:     cfg.Temperature,
		Retries:         cfg.GenerationRetries,
		RetryDelay:      cfg.RetryDelay,
		MaxHistoryTurns: cfg.MaxHistoryTurns,
		Condense:        cfg.CondenseQuestion,
		Observer:        observer,
	})

	loop, err := chat.NewLoop(retriever, generator, chat.Options{
		K:               cfg.RetrievalK,
		MaxHistoryTurns: cfg.MaxHistoryTurns,
		In:              cmd.InOrStdin(),
		Out:             cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.LLMModel).Msg("Conversational retrieval initialized")
	return loop.Run(ctx)
}

func startupError(w io.Writer, err error) error {
	fmt.Fprintln(w, "Troubleshooting steps:")
	fmt.Fprintln(w, "1. Make sure you've run 'pdfrag ingest' first")
	fmt.Fprintln(w, "2. Check that your .env file contains a valid OPENAI_API_KEY")
	fmt.Fprintln(w, "3. Ensure the docs/ folder contains PDF files")
	return fmt.Errorf("failed to initialize chatbot: %w", err)
}
