package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
)

// NewLLM creates the chat model for the configured provider
func NewLLM(cfg *config.Config) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.LLMModel).Msg("Creating language model")

	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.OllamaURL),
			ollama.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		return llm, nil
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithModel(cfg.LLMModel),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return llm, nil
	}
}

// GenerateContent calls the model once and returns the text of the first choice
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return res.Choices[0].Content, nil
}

// StreamContent calls the model with streaming enabled. Every fragment is
// passed to onFragment as it arrives; returning an error from onFragment
// stops the stream. The full text is returned, which also covers models
// that ignore the streaming callback.
func StreamContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, onFragment func(string) error, options ...llms.CallOption) (string, error) {
	var sb strings.Builder
	streamed := false
	options = append(options, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		streamed = true
		sb.Write(chunk)
		return onFragment(string(chunk))
	}))

	full, err := GenerateContent(ctx, llm, messages, options...)
	if err != nil {
		return sb.String(), err
	}
	if !streamed && full != "" {
		if err := onFragment(full); err != nil {
			return full, err
		}
		return full, nil
	}
	return sb.String(), nil
}
