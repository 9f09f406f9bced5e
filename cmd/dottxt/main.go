package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/aluiziolira/dottxt/config"
	"github.com/aluiziolira/dottxt/models"
	"github.com/aluiziolira/dottxt/pipeline"
	"github.com/aluiziolira/dottxt/scraper"
	"github.com/aluiziolira/dottxt/server"
)

var logLevel = &slog.LevelVar{}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("dottxt failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dottxt",
		Usage: "generate llms.txt documents for websites",
		Flags: globalFlags(config.DefaultConfig()),
		Before: func(c *cli.Context) error {
			slog.SetDefault(newLogger(c.Bool("verbose")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "generate",
				Usage: "generate one document and print or save it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "website to crawl", Required: true},
					&cli.BoolFlag{Name: "full", Usage: "generate llms-full.txt instead of llms.txt"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the document to this file instead of stdout"},
				},
				Action: generateAction,
			},
		},
	}
}

func globalFlags(d *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML config file", EnvVars: []string{"DOTTXT_CONFIG"}},
		&cli.StringFlag{Name: "addr", Value: d.Addr, Usage: "HTTP listen address", EnvVars: []string{"DOTTXT_ADDR"}},
		&cli.StringFlag{Name: "metrics-addr", Value: d.MetricsAddr, Usage: "Prometheus metrics listen address (e.g. :9090)", EnvVars: []string{"DOTTXT_METRICS_ADDR"}},
		&cli.StringFlag{Name: "backend", Value: d.Backend, Usage: "page backend: firecrawl or colly", EnvVars: []string{"DOTTXT_BACKEND"}},
		&cli.StringFlag{Name: "firecrawl-api-key", Usage: "Firecrawl API key", EnvVars: []string{"FIRECRAWL_API_KEY"}},
		&cli.StringFlag{Name: "firecrawl-base-url", Value: d.FirecrawlBaseURL, Usage: "Firecrawl API base URL", EnvVars: []string{"FIRECRAWL_BASE_URL"}},
		&cli.StringFlag{Name: "openai-api-key", Usage: "OpenAI API key", EnvVars: []string{"OPENAI_API_KEY"}},
		&cli.StringFlag{Name: "openai-base-url", Value: d.OpenAIBaseURL, Usage: "OpenAI API base URL", EnvVars: []string{"OPENAI_BASE_URL"}},
		&cli.StringFlag{Name: "model", Value: d.Model, Usage: "completion model", EnvVars: []string{"DOTTXT_MODEL"}},
		&cli.Float64Flag{Name: "temperature", Value: float64(d.Temperature), Usage: "completion temperature", EnvVars: []string{"DOTTXT_TEMPERATURE"}},
		&cli.DurationFlag{Name: "timeout", Value: d.Timeout, Usage: "timeout per upstream HTTP call", EnvVars: []string{"DOTTXT_TIMEOUT"}},
		&cli.DurationFlag{Name: "request-timeout", Value: d.RequestTimeout, Usage: "wall-clock limit per generation", EnvVars: []string{"DOTTXT_REQUEST_TIMEOUT"}},
		&cli.StringFlag{Name: "user-agent", Value: d.UserAgent, Usage: "User-Agent for the colly backend", EnvVars: []string{"DOTTXT_USER_AGENT"}},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
	}
}

// loadConfig layers defaults, the optional YAML file, then flags and
// environment variables.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("firecrawl-api-key") {
		cfg.FirecrawlAPIKey = c.String("firecrawl-api-key")
	}
	if c.IsSet("firecrawl-base-url") {
		cfg.FirecrawlBaseURL = c.String("firecrawl-base-url")
	}
	if c.IsSet("openai-api-key") {
		cfg.OpenAIAPIKey = c.String("openai-api-key")
	}
	if c.IsSet("openai-base-url") {
		cfg.OpenAIBaseURL = c.String("openai-base-url")
	}
	if c.IsSet("model") {
		cfg.Model = c.String("model")
	}
	if c.IsSet("temperature") {
		cfg.Temperature = float32(c.Float64("temperature"))
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("request-timeout") {
		cfg.RequestTimeout = c.Duration("request-timeout")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	return cfg, nil
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Credentials(); err != nil {
		slog.Warn("requests will fail until the credential is set", slog.Any("error", err))
	}

	metrics := scraper.NewMetrics()
	p := pipeline.New(cfg, pipeline.WithMetrics(metrics))
	api := server.New(p, server.WithMetrics(metrics), server.WithRequestTimeout(cfg.RequestTimeout))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			slog.String("addr", cfg.Addr),
			slog.String("backend", cfg.Backend),
			slog.String("model", cfg.Model),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, waiting for in-flight requests to finish")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	return nil
}

func generateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := pipeline.New(cfg).Run(ctx, c.String("url"), c.Bool("full"), logProgress)
	if err != nil {
		return err
	}

	if output := c.String("output"); output != "" {
		if err := pipeline.WriteDocument(output, result.Content); err != nil {
			return err
		}
		slog.Info("document written", slog.String("file", output))
	} else {
		fmt.Fprintln(c.App.Writer, result.Content)
	}

	printSummary(c, result, time.Since(start))
	return nil
}

func logProgress(p models.CrawlProgress) {
	attrs := []any{slog.String("status", string(p.Status))}
	if p.Current != nil && p.Total != nil {
		attrs = append(attrs, slog.Int("current", *p.Current), slog.Int("total", *p.Total))
	}
	slog.Info(p.Message, attrs...)
}

func printSummary(c *cli.Context, result *models.CrawlResult, duration time.Duration) {
	if result.Metadata == nil {
		return
	}
	w := c.App.ErrWriter
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "  Pages scraped: %d of %d\n", result.Metadata.PagesScraped, result.Metadata.TotalPages)
	fmt.Fprintf(w, "  Document:      %s\n", models.ModeFor(result.Metadata.FullVersion).DocumentName())
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintln(w, separator)
}

// newLogger builds the stderr logger. Its level is logLevel, which loadConfig
// raises to debug when the config file asks for it.
func newLogger(verbose bool) *slog.Logger {
	if verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
