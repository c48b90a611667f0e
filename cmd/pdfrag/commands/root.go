package commands

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
)

var (
	configFile string
	envFile    string

	// log files are written here
	logDir = "."
)

// NewRootCmd creates the pdfrag command with its subcommands
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfrag",
		Short: "Ask questions about a folder of PDF documents",
		Long: `pdfrag indexes the documents in a folder into a vector store and answers
questions about them with a language model, citing the pages it used.

Examples:
  pdfrag ingest
  pdfrag ingest --docs ./manuals --reset
  pdfrag chat`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML settings file (default "+config.DefaultConfigPath+" when present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with secrets")

	cmd.AddCommand(NewIngestCmd(), NewChatCmd())
	return cmd
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	opts := config.Options{File: config.DefaultConfigPath, EnvFile: envFile}
	if configFile != "" {
		opts.File = configFile
		opts.FileRequired = true
	}
	return config.Load(opts)
}

func logPath(name string) string {
	return filepath.Join(logDir, name)
}
