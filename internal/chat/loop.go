// Package chat runs the interactive question answering loop on top of the
// retrieval and generation stages.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

const ruleWidth = 60

// Retriever is the retrieval stage as seen by the loop
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Generator is the answer generation stage as seen by the loop
type Generator interface {
	Condense(ctx context.Context, query string, history []models.Turn) string
	Stream(ctx context.Context, query string, results []models.SearchResult, history []models.Turn) *rag.Stream
}

type styles struct {
	title  lipgloss.Style
	prompt lipgloss.Style
	bot    lipgloss.Style
	meta   lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	rule   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		prompt: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		bot:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		meta:   r.NewStyle().Foreground(lipgloss.Color("245")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		rule:   r.NewStyle().Faint(true),
	}
}

// Options configures a Loop
type Options struct {
	// K is the number of chunks retrieved per question
	K               int
	MaxHistoryTurns int
	In              io.Reader
	Out             io.Writer
}

// Loop reads questions and prints grounded answers until told to stop
type Loop struct {
	session   *Session
	retriever Retriever
	generator Generator
	k         int
	in        io.Reader
	out       io.Writer
	styles    styles
}

func NewLoop(retriever Retriever, generator Generator, opts Options) (*Loop, error) {
	session, err := NewSession(opts.MaxHistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &Loop{
		session:   session,
		retriever: retriever,
		generator: generator,
		k:         opts.K,
		in:        opts.In,
		out:       opts.Out,
		styles:    newStyles(opts.Out),
	}, nil
}

type line struct {
	text string
	err  error
}

// readLines feeds input lines to a channel so that waiting for the user can
// be interrupted
func readLines(ctx context.Context, in io.Reader) <-chan line {
	ch := make(chan line)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case ch <- line{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// Run drives the conversation. It returns nil on an exit keyword, end of
// input or cancellation of ctx. Failed turns are reported and the loop
// carries on.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().Str("session", l.session.ID).Msg("Chat session started")
	lines := readLines(ctx, l.in)
	l.welcome()

	for {
		l.session.State = AwaitingInput
		fmt.Fprint(l.out, l.styles.prompt.Render("❓ You:")+" ")

		var in line
		var ok bool
		select {
		case <-ctx.Done():
			l.terminate("interrupted")
			return nil
		case in, ok = <-lines:
		}
		if !ok {
			l.terminate("end of input")
			return nil
		}
		if in.err != nil {
			l.terminate("input error")
			return fmt.Errorf("failed to read input: %w", in.err)
		}

		query := strings.TrimSpace(in.text)
		if query == "" {
			continue
		}
		if exitWords[strings.ToLower(query)] {
			l.terminate("exit keyword")
			return nil
		}

		if err := l.turn(ctx, query); err != nil {
			if ctx.Err() != nil {
				l.terminate("interrupted")
				return nil
			}
			log.Error().Err(err).Str("session", l.session.ID).Str("query", query).Msg("Error processing query")
			fmt.Fprintln(l.out)
			fmt.Fprintln(l.out, l.styles.err.Render("❌ Sorry, I encountered an error: "+err.Error()))
			fmt.Fprintln(l.out, "Please try rephrasing your question.")
			l.separator()
		}
	}
}

func (l *Loop) turn(ctx context.Context, query string) error {
	l.session.State = Processing
	start := time.Now()

	count, err := l.retriever.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		log.Warn().Str("session", l.session.ID).Msg("Collection is empty")
		fmt.Fprintln(l.out)
		fmt.Fprintln(l.out, l.styles.warn.Render("⚠️  No documents are indexed yet. Run 'pdfrag ingest' first."))
		l.separator()
		return nil
	}

	history := l.session.History
	standalone := l.generator.Condense(ctx, query, history)
	results, err := l.retriever.Retrieve(ctx, standalone, l.k)
	if err != nil {
		return err
	}
	stream := l.generator.Stream(ctx, query, results, history)

	l.session.State = Responding
	fmt.Fprint(l.out, "\n"+l.styles.bot.Render("🤖 RAGbot:")+" ")
	var answer strings.Builder
	for fragment, err := range stream.Fragments() {
		if err != nil {
			fmt.Fprintln(l.out)
			return err
		}
		fmt.Fprint(l.out, fragment)
		answer.WriteString(fragment)
	}
	elapsed := time.Since(start)

	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, l.styles.meta.Render("📚 "+FormatSources(stream.Citations())))
	fmt.Fprintln(l.out, l.styles.meta.Render(fmt.Sprintf("⏱️  Response time: %.2fs", elapsed.Seconds())))
	l.separator()

	l.session.Append(models.Turn{Query: query, Answer: answer.String()})
	log.Info().Str("session", l.session.ID).
		Str("standalone_query", standalone).
		Int("results", len(results)).
		Dur("elapsed", elapsed).
		Msgf("Query processed in %.2fs", elapsed.Seconds())
	return nil
}

// FormatSources renders the citation line printed under an answer
func FormatSources(citations []models.Citation) string {
	if len(citations) == 0 {
		return "No sources found."
	}
	parts := make([]string, len(citations))
	for i, c := range citations {
		parts[i] = c.String()
	}
	return "Sources: " + strings.Join(parts, ", ")
}

func (l *Loop) welcome() {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(l.out, rule)
	fmt.Fprintln(l.out, l.styles.title.Render("🤖 Welcome to RAG Chatbot!"))
	fmt.Fprintln(l.out, "Ask questions about your documents and get AI-powered answers.")
	fmt.Fprintln(l.out, "Type 'exit', 'quit', or 'q' to stop the conversation.")
	fmt.Fprintln(l.out, rule)
	fmt.Fprintln(l.out)
}

func (l *Loop) separator() {
	fmt.Fprintln(l.out, l.styles.rule.Render(strings.Repeat("-", ruleWidth)))
}

func (l *Loop) terminate(reason string) {
	l.session.State = Terminated
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "👋 Thanks for using RAG Chatbot! Goodbye!")
	log.Info().Str("session", l.session.ID).Str("reason", reason).Int("turns", len(l.session.History)).Msg("Chat session ended")
}
