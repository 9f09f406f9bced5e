// Package synthesizer turns scraped pages into an llms.txt document using a
// chat completion service.
package synthesizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/dottxt/models"
)

// FallbackContent is returned when the completion service answers with no text.
const FallbackContent = "Failed to generate content"

const (
	conciseInstructions = "You are creating a concise llms.txt file. Provide a clear, brief overview of the website's main purpose, key features, and most important information. Keep it succinct but informative."
	fullInstructions    = "You are creating a comprehensive llms-full.txt file. Include detailed information about the website's content, structure, API endpoints, documentation, and any relevant technical details. Format it clearly with sections and subsections."

	pageSeparator = "\n\n---\n\n"
)

// CompletionRequest is a single system+user chat completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Completer calls a chat completion service and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// UpstreamError wraps a failed call to an external service.
type UpstreamError struct {
	Service string
	Err     error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}

// Observer records completion latency.
type Observer interface {
	ObserveUpstream(service string, d time.Duration)
}

// Synthesizer builds prompts and issues one completion per document.
type Synthesizer struct {
	completer   Completer
	model       string
	temperature float32
	observer    Observer
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithObserver reports completion latency to o.
func WithObserver(o Observer) Option {
	return func(s *Synthesizer) { s.observer = o }
}

// New builds a Synthesizer for the given model and temperature.
func New(c Completer, model string, temperature float32, opts ...Option) *Synthesizer {
	s := &Synthesizer{completer: c, model: model, temperature: temperature}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instructions returns the system prompt for mode.
func Instructions(mode models.Mode) string {
	if mode.Full {
		return fullInstructions
	}
	return conciseInstructions
}

// BuildPrompt renders pages, in order, into the user message for mode.
func BuildPrompt(pages []models.ScrapedPage, mode models.Mode) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		parts = append(parts, fmt.Sprintf("URL: %s\n\n%s", page.URL, page.Content))
	}
	return fmt.Sprintf("Based on the following crawled content, create an %s file:\n\n", mode.DocumentName()) +
		strings.Join(parts, pageSeparator)
}

// Synthesize generates the document text for pages.
func (s *Synthesizer) Synthesize(ctx context.Context, pages []models.ScrapedPage, mode models.Mode) (string, error) {
	req := CompletionRequest{
		System:      Instructions(mode),
		Prompt:      BuildPrompt(pages, mode),
		Model:       s.model,
		MaxTokens:   mode.MaxTokens(),
		Temperature: s.temperature,
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, req)
	if s.observer != nil {
		s.observer.ObserveUpstream("completion", time.Since(start))
	}
	if err != nil {
		return "", UpstreamError{Service: "openai", Err: err}
	}
	if text == "" {
		slog.Warn("completion returned no text", slog.String("mode", mode.String()))
		return FallbackContent, nil
	}
	return text, nil
}
