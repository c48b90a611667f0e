package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

var errStopped = errors.New("consumer stopped reading")

// GeneratorOptions tune how answers are produced
type GeneratorOptions struct {
	Temperature float64
	// Retries is the number of extra attempts when the model fails before
	// sending anything
	Retries         int
	RetryDelay      time.Duration
	MaxHistoryTurns int
	Condense        bool
	Observer        Observer
}

// Generator asks the language model for grounded answers
type Generator struct {
	llm         llms.Model
	temperature float64
	retry       helper.RetryPolicy
	maxHistory  int
	condense    bool
	observer    Observer
}

func NewGenerator(llm llms.Model, opts GeneratorOptions) *Generator {
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Generator{
		llm:         llm,
		temperature: opts.Temperature,
		retry:       helper.RetryPolicy{Attempts: 1 + max(opts.Retries, 0), BaseDelay: opts.RetryDelay},
		maxHistory:  max(opts.MaxHistoryTurns, 0),
		condense:    opts.Condense,
		observer:    observer,
	}
}

// Condense rewrites a follow-up question into a standalone one so retrieval
// does not depend on the conversation. The raw query is returned when
// condensing is off, there is no history, or the model fails.
func (g *Generator) Condense(ctx context.Context, query string, history []models.Turn) string {
	history = g.window(history)
	if !g.condense || len(history) == 0 {
		return query
	}

	prompt := fmt.Sprintf(models.CondensePromptTemplate, formatHistory(history), query)
	out, err := llmservice.GenerateContent(ctx, g.llm,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0),
	)
	if err != nil {
		g.observer.Fallback("condense question", err)
		return query
	}
	if out = strings.TrimSpace(out); out == "" {
		return query
	}
	return out
}

// Stream prepares the answer for query. Nothing is sent to the model until
// the returned stream is read.
func (g *Generator) Stream(ctx context.Context, query string, results []models.SearchResult, history []models.Turn) *Stream {
	messages := BuildMessages(query, results, g.window(history))

	seq := func(yield func(string, error) bool) {
		for attempt := 1; ; attempt++ {
			emitted, stopped := false, false
			_, err := llmservice.StreamContent(ctx, g.llm, messages, func(fragment string) error {
				emitted = true
				if !yield(fragment, nil) {
					stopped = true
					return errStopped
				}
				return nil
			}, llms.WithTemperature(g.temperature))
			if stopped || err == nil {
				return
			}

			// a partial answer is already on screen, retrying would repeat it
			if emitted || attempt >= g.retry.Attempts || ctx.Err() != nil {
				yield("", fmt.Errorf("%w: failed to generate answer: %w", models.ErrExternalService, err))
				return
			}
			delay := helper.CalculateBackoff(g.retry.BaseDelay, attempt)
			g.observer.Retrying("generate answer", attempt, delay, err)
			if err := helper.Sleep(ctx, delay); err != nil {
				yield("", err)
				return
			}
		}
	}
	return NewStream(Citations(results), seq)
}

func (g *Generator) window(history []models.Turn) []models.Turn {
	if len(history) > g.maxHistory {
		return history[len(history)-g.maxHistory:]
	}
	return history
}

// Stream is a single-use sequence of answer fragments together with the
// sources the answer was grounded on
type Stream struct {
	citations []models.Citation
	seq       iter.Seq2[string, error]
	consumed  bool
}

func NewStream(citations []models.Citation, seq iter.Seq2[string, error]) *Stream {
	return &Stream{citations: citations, seq: seq}
}

// Citations are deduplicated and in order of first appearance
func (s *Stream) Citations() []models.Citation {
	return s.citations
}

// Fragments yields the answer as it arrives. A second call yields
// ErrStreamConsumed.
func (s *Stream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.consumed {
			yield("", models.ErrStreamConsumed)
			return
		}
		s.consumed = true
		s.seq(yield)
	}
}

// BuildMessages assembles the system prompt with the numbered passages, the
// conversation so far, and the question
func BuildMessages(query string, results []models.SearchResult, history []models.Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2+2*len(history))
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(models.SystemPromptTemplate, FormatContext(results))))
	for _, t := range history {
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeHuman, t.Query),
			llms.TextParts(llms.ChatMessageTypeAI, t.Answer),
		)
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))
}

// FormatContext renders the passages with their provenance
func FormatContext(results []models.SearchResult) string {
	if len(results) == 0 {
		return models.NoContextText
	}
	parts := make([]string, len(results))
	for i, r := range results {
		c := models.Citation{SourcePath: r.SourcePath, PageNumber: r.PageNumber}
		parts[i] = fmt.Sprintf("[%d] %s\n%s", i+1, c, r.Text)
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Citations returns one entry per distinct (file, page), first occurrence wins
func Citations(results []models.SearchResult) []models.Citation {
	out := []models.Citation{}
	seen := make(map[models.Citation]bool)
	for _, r := range results {
		c := models.Citation{SourcePath: r.SourcePath, PageNumber: r.PageNumber}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func formatHistory(history []models.Turn) string {
	var sb strings.Builder
	for _, t := range history {
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s\n", t.Query, t.Answer)
	}
	return sb.String()
}
