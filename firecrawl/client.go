// Package firecrawl is a minimal client for the Firecrawl v1 map and scrape
// endpoints.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/dottxt/models"
)

// ErrUnsuccessful is returned when the API answers with success=false.
var ErrUnsuccessful = errors.New("firecrawl: request unsuccessful")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("firecrawl: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("firecrawl: http status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus reports the upstream status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Client talks to the Firecrawl API. It holds no mutable state.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewHTTPClient returns an http.Client tuned for API calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewClient builds a client against baseURL (e.g. https://api.firecrawl.dev).
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type mapRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error,omitempty"`
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string         `json:"markdown"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Map asks Firecrawl for up to limit page URLs belonging to the site.
func (c *Client) Map(ctx context.Context, url string, limit int) ([]string, error) {
	var out mapResponse
	if err := c.post(ctx, "/v1/map", mapRequest{URL: url, Limit: limit}, &out); err != nil {
		return nil, fmt.Errorf("map %s: %w", url, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("map %s: %w", url, unsuccessful(out.Error))
	}
	return out.Links, nil
}

// Scrape fetches one page as markdown.
func (c *Client) Scrape(ctx context.Context, url string) (*models.ScrapedPage, error) {
	var out scrapeResponse
	req := scrapeRequest{URL: url, Formats: []string{"markdown"}}
	if err := c.post(ctx, "/v1/scrape", req, &out); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", url, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("scrape %s: %w", url, unsuccessful(out.Error))
	}
	return &models.ScrapedPage{
		URL:      url,
		Content:  out.Data.Markdown,
		Metadata: out.Data.Metadata,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func unsuccessful(msg string) error {
	if msg == "" {
		return ErrUnsuccessful
	}
	return fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
}

// apiMessage prefers the JSON "error" field over the raw body.
func apiMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}
