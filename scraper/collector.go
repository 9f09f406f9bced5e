package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/dottxt/models"
	"github.com/aluiziolira/dottxt/parser"
)

// Discoverer lists the page URLs of a site.
type Discoverer interface {
	Map(ctx context.Context, url string, limit int) ([]string, error)
}

// PageScraper returns the markup content of a single page.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedPage, error)
}

// Collector discovers a site's pages and scrapes them one at a time.
type Collector struct {
	discoverer Discoverer
	scraper    PageScraper
	metrics    *Metrics
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithMetrics attaches Prometheus metrics to the collector.
func WithMetrics(m *Metrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector builds a collector over the given collaborators.
func NewCollector(d Discoverer, s PageScraper, opts ...CollectorOption) *Collector {
	c := &Collector{discoverer: d, scraper: s}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs discovery for url and scrapes every returned link in order.
// Pages that fail to scrape are logged and skipped.
func (c *Collector) Collect(ctx context.Context, url string, mode models.Mode, report models.Reporter) (*models.Collection, error) {
	report.Emit(models.Progress(models.StatusCrawling, fmt.Sprintf("Crawling %s...", url)))

	limit := mode.PageLimit()
	start := time.Now()
	links, err := c.discoverer.Map(ctx, url, limit)
	c.metrics.ObserveUpstream("discovery", time.Since(start))
	if err != nil {
		slog.Error("discovery failed", slog.String("url", url), slog.Any("error", err))
		return nil, DiscoveryError{Err: err}
	}
	if len(links) > limit {
		links = links[:limit]
	}
	c.metrics.ObserveDiscovered(len(links))
	if len(links) == 0 {
		return nil, ErrNoPagesFound
	}

	total := len(links)
	report.Emit(models.ProgressOf(models.StatusCrawling, fmt.Sprintf("Found %d pages to process...", total), 0, total))

	pages := make([]models.ScrapedPage, 0, total)
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Emit(models.ProgressOf(models.StatusCrawling, fmt.Sprintf("Scraping %s...", link), i+1, total))

		page, err := c.scrape(ctx, link)
		if err != nil {
			c.skip(ScrapeFailure{URL: link, Err: err})
			continue
		}
		c.metrics.IncPages()
		pages = append(pages, *page)
	}

	if len(pages) == 0 {
		return nil, ErrNoPagesScraped
	}

	slog.Debug("collection finished",
		slog.String("url", url),
		slog.Int("scraped", len(pages)),
		slog.Int("total", total),
	)
	return &models.Collection{Pages: pages, TotalPages: total}, nil
}

func (c *Collector) scrape(ctx context.Context, link string) (*models.ScrapedPage, error) {
	start := time.Now()
	page, err := c.scraper.Scrape(ctx, link)
	c.metrics.ObserveUpstream("scrape", time.Since(start))
	if err != nil {
		return nil, err
	}
	if page != nil && page.URL == "" {
		page.URL = link
	}
	if err := parser.ValidatePage(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Collector) skip(failure ScrapeFailure) {
	category := errorTypeLabel(classifyError(failure.Err, statusOf(failure.Err)))
	slog.Warn("failed to scrape page",
		slog.String("url", failure.URL),
		slog.String("category", category),
		slog.Any("error", failure.Err),
	)
	c.metrics.IncError(category)
}
