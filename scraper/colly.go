package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/dottxt/models"
)

const seenFactor = 10

// HTTPError is a non-2xx page response seen by the local backend.
type HTTPError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.URL, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HTTPStatus reports the page status code.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// Local discovers and scrapes pages directly with colly. It implements
// Discoverer and PageScraper and needs no API key.
type Local struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewLocal builds a local backend.
func NewLocal(userAgent string, timeout time.Duration) *Local {
	return &Local{
		userAgent: userAgent,
		timeout:   timeout,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (l *Local) collector(ctx context.Context, opts ...colly.CollectorOption) *colly.Collector {
	opts = append(opts, colly.UserAgent(l.userAgent))
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(l.timeout)
	c.WithTransport(l.transport)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	return c
}

// Map follows same-host links from root (two levels deep) until limit URLs are
// known. The root page is always the first entry. When root redirects, the
// host it lands on becomes the site host.
func (l *Local) Map(ctx context.Context, root string, limit int) ([]string, error) {
	parsed, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("parse root url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("root url must include a host")
	}
	if limit <= 0 {
		return nil, nil
	}

	seen, err := lru.New[string, struct{}](limit * seenFactor)
	if err != nil {
		return nil, fmt.Errorf("create seen set: %w", err)
	}

	links := []string{canonicalLink(parsed)}
	seen.Add(links[0], struct{}{})
	host := parsed.Hostname()

	c := l.collector(ctx, colly.MaxDepth(2))
	c.OnResponse(func(r *colly.Response) {
		if r.Request.Depth != 1 {
			return
		}
		landed := canonicalLink(r.Request.URL)
		if landed == links[0] {
			return
		}
		host = r.Request.URL.Hostname()
		links[0] = landed
		seen.Add(landed, struct{}{})
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= limit {
			return
		}
		abs, err := url.Parse(e.Request.AbsoluteURL(e.Attr("href")))
		if err != nil || abs.Hostname() != host {
			return
		}
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		link := canonicalLink(abs)
		if seen.Contains(link) {
			return
		}
		seen.Add(link, struct{}{})
		links = append(links, link)
		if err := e.Request.Visit(link); err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
			slog.Debug("discovery visit skipped", slog.String("url", link), slog.Any("error", err))
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil && r.Request.Depth == 1 {
			visitErr = statusError(r, err)
		}
	})

	err = c.Visit(links[0])
	c.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if err != nil {
		return nil, fmt.Errorf("visit %s: %w", root, err)
	}
	return links, nil
}

// Scrape fetches pageURL and converts its main content to markdown.
func (l *Local) Scrape(ctx context.Context, pageURL string) (*models.ScrapedPage, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var (
		body     []byte
		status   int
		metadata = map[string]any{"sourceURL": pageURL}
		fetchErr error
	)

	c := l.collector(ctx)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		collectMetadata(e.DOM, metadata)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = statusError(r, err)
	})

	err = c.Visit(pageURL)
	c.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	metadata["statusCode"] = status

	content, err := toMarkdown(body, parsed)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", pageURL, err)
	}
	return &models.ScrapedPage{URL: pageURL, Content: content, Metadata: metadata}, nil
}

func collectMetadata(doc *goquery.Selection, metadata map[string]any) {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		metadata["title"] = title
	}
	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if desc == "" {
		desc = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	if desc != "" {
		metadata["description"] = desc
	}
	if lang := strings.TrimSpace(doc.AttrOr("lang", "")); lang != "" {
		metadata["language"] = lang
	}
}

// toMarkdown keeps the readable part of the page when readability finds one
// and falls back to the whole body.
func toMarkdown(body []byte, pageURL *url.URL) (string, error) {
	html := ""
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), pageURL)
	if err == nil {
		html = article.Content
	}
	if strings.TrimSpace(html) == "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		doc.Find("script,noscript,style").Remove()
		html, err = doc.Find("body").Html()
		if err != nil {
			return "", err
		}
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}

func statusError(r *colly.Response, err error) error {
	if r == nil || r.Request == nil || r.Request.URL == nil {
		return err
	}
	if r.StatusCode == 0 {
		return fmt.Errorf("%s: %w", r.Request.URL, err)
	}
	return &HTTPError{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Err: err}
}

func canonicalLink(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	if clean.Path == "" {
		clean.Path = "/"
	}
	return clean.String()
}
