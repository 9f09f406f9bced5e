// Package pipeline runs one document generation: normalize, collect,
// synthesize, and report progress along the way.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/dottxt/config"
	"github.com/aluiziolira/dottxt/firecrawl"
	"github.com/aluiziolira/dottxt/models"
	"github.com/aluiziolira/dottxt/parser"
	"github.com/aluiziolira/dottxt/scraper"
	"github.com/aluiziolira/dottxt/synthesizer"
)

const fallbackErrorMessage = "An error occurred"

// Collaborators are the external services used by a single run.
type Collaborators struct {
	Discoverer scraper.Discoverer
	Scraper    scraper.PageScraper
	Completer  synthesizer.Completer
}

// Factory builds fresh collaborators for each run.
type Factory func() Collaborators

// NewFactory returns a Factory for cfg's backend. The returned clients share
// one http.Client and read cfg only.
func NewFactory(cfg *config.Config) Factory {
	httpClient := firecrawl.NewHTTPClient(cfg.Timeout)
	return func() Collaborators {
		var c Collaborators
		switch cfg.Backend {
		case config.BackendColly:
			local := scraper.NewLocal(cfg.UserAgent, cfg.Timeout)
			c.Discoverer, c.Scraper = local, local
		default:
			client := firecrawl.NewClient(httpClient, cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey)
			c.Discoverer, c.Scraper = client, client
		}
		c.Completer = synthesizer.NewOpenAI(withoutTimeout(httpClient), cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
		return c
	}
}

// withoutTimeout drops the per-call timeout; completions are bounded by the request context.
func withoutTimeout(c *http.Client) *http.Client {
	clone := *c
	clone.Timeout = 0
	return &clone
}

// Pipeline generates llms.txt documents. It is safe for concurrent use.
type Pipeline struct {
	cfg     *config.Config
	factory Factory
	metrics *scraper.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus metrics to every run.
func WithMetrics(m *scraper.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithFactory replaces the collaborator factory.
func WithFactory(f Factory) Option {
	return func(p *Pipeline) { p.factory = f }
}

// New builds a pipeline over cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.factory == nil {
		p.factory = NewFactory(cfg)
	}
	return p
}

// Preflight reports a missing collaborator credential before any work starts.
func (p *Pipeline) Preflight() error {
	return p.cfg.Credentials()
}

// Run generates the document for rawURL. Progress goes to report, which may
// be nil. A failed run emits exactly one error event and returns the error.
func (p *Pipeline) Run(ctx context.Context, rawURL string, fullVersion bool, report models.Reporter) (*models.CrawlResult, error) {
	mode := models.ModeFor(fullVersion)
	start := time.Now()

	result, err := p.run(ctx, rawURL, mode, report)
	if err != nil {
		slog.Error("generation failed",
			slog.String("url", rawURL),
			slog.String("mode", mode.String()),
			slog.Any("error", err),
		)
		report.Emit(models.Progress(models.StatusError, ErrorMessage(err, fallbackErrorMessage)))
		p.metrics.ObserveGeneration(mode.String(), "error", time.Since(start))
		return nil, err
	}

	slog.Info("generation finished",
		slog.String("url", rawURL),
		slog.String("mode", mode.String()),
		slog.Int("pages", result.Metadata.PagesScraped),
		slog.Int("total", result.Metadata.TotalPages),
		slog.Duration("duration", time.Since(start)),
	)
	p.metrics.ObserveGeneration(mode.String(), "ok", time.Since(start))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, rawURL string, mode models.Mode, report models.Reporter) (*models.CrawlResult, error) {
	if err := p.Preflight(); err != nil {
		return nil, err
	}

	url := parser.NormalizeURL(rawURL)
	collab := p.factory()

	collection, err := scraper.NewCollector(collab.Discoverer, collab.Scraper, scraper.WithMetrics(p.metrics)).
		Collect(ctx, url, mode, report)
	if err != nil {
		return nil, err
	}

	report.Emit(models.Progress(models.StatusEnhancing, "Enhancing content with AI..."))
	synth := synthesizer.New(collab.Completer, p.cfg.Model, p.cfg.Temperature, synthesizer.WithObserver(p.metrics))
	content, err := synth.Synthesize(ctx, collection.Pages, mode)
	if err != nil {
		return nil, err
	}

	report.Emit(models.Progress(models.StatusComplete, "Done!"))
	return &models.CrawlResult{
		Content: content,
		Metadata: &models.ResultMetadata{
			PagesScraped: len(collection.Pages),
			TotalPages:   collection.TotalPages,
			FullVersion:  mode.Full,
		},
	}, nil
}

// ErrorMessage returns err's message, or fallback when it has none.
func ErrorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
