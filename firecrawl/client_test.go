package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

const testBase = "http://firecrawl.test"

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	return NewClient(&http.Client{Transport: transport}, testBase+"/", "fc-test"), transport
}

func TestMapSendsLimitAndAuth(t *testing.T) {
	client, transport := newTestClient(t)

	var got mapRequest
	transport.RegisterResponder(http.MethodPost, testBase+"/v1/map", func(req *http.Request) (*http.Response, error) {
		if auth := req.Header.Get("Authorization"); auth != "Bearer fc-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		return httpmock.NewJsonResponse(200, map[string]any{
			"success": true,
			"links":   []string{"https://example.com/", "https://example.com/about"},
		})
	})

	links, err := client.Map(context.Background(), "https://example.com", 10)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got.URL != "https://example.com" || got.Limit != 10 {
		t.Fatalf("request = %+v", got)
	}
	if len(links) != 2 || links[1] != "https://example.com/about" {
		t.Fatalf("links = %v", links)
	}
}

func TestMapUnsuccessful(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/v1/map",
		httpmock.NewStringResponder(200, `{"success":false,"error":"site unreachable"}`))

	_, err := client.Map(context.Background(), "https://example.com", 10)
	if !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestScrapeMarkdown(t *testing.T) {
	client, transport := newTestClient(t)

	var got scrapeRequest
	transport.RegisterResponder(http.MethodPost, testBase+"/v1/scrape", func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		return httpmock.NewJsonResponse(200, map[string]any{
			"success": true,
			"data": map[string]any{
				"markdown": "# Example\n\nHello.",
				"metadata": map[string]any{"title": "Example", "statusCode": 200},
			},
		})
	})

	page, err := client.Scrape(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(got.Formats) != 1 || got.Formats[0] != "markdown" {
		t.Fatalf("formats = %v", got.Formats)
	}
	if page.URL != "https://example.com/" || page.Content != "# Example\n\nHello." {
		t.Fatalf("page = %+v", page)
	}
	if page.Metadata["title"] != "Example" {
		t.Fatalf("metadata = %v", page.Metadata)
	}
}

func TestScrapeHTTPError(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/v1/scrape",
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"success":false,"error":"Rate limit exceeded"}`))

	_, err := client.Scrape(context.Background(), "https://example.com/")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "Rate limit exceeded" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestScrapeTransportError(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/v1/scrape",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	if _, err := client.Scrape(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("expected transport error")
	}
}
