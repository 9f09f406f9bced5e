package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/dottxt/models"
)

func readLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestStreamWriterComplete(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewStreamWriter(rec)
	report := sw.Reporter()

	report(models.Progress(models.StatusCrawling, "Crawling https://example.com..."))
	report(models.ProgressOf(models.StatusCrawling, "Scraping https://example.com/...", 1, 2))
	if !rec.Flushed {
		t.Fatal("expected stream to be flushed after each record")
	}
	result := &models.CrawlResult{
		Content:  "# Example",
		Metadata: &models.ResultMetadata{PagesScraped: 1, TotalPages: 2},
	}
	if err := sw.Complete(result); err != nil {
		t.Fatalf("complete: %v", err)
	}

	lines := readLines(t, rec.Body.String())
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if _, ok := lines[0]["current"]; ok {
		t.Fatalf("counters should be omitted: %v", lines[0])
	}
	if lines[1]["current"] != float64(1) || lines[1]["total"] != float64(2) {
		t.Fatalf("counters = %v", lines[1])
	}

	last := lines[2]
	if last["status"] != "complete" {
		t.Fatalf("terminal status = %v", last["status"])
	}
	res, ok := last["result"].(map[string]any)
	if !ok || res["content"] != "# Example" {
		t.Fatalf("result = %v", last["result"])
	}
	meta := res["metadata"].(map[string]any)
	if meta["pagesScraped"] != float64(1) || meta["totalPages"] != float64(2) || meta["fullVersion"] != false {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestStreamWriterFail(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{err: errors.New("No pages found to crawl"), expected: "No pages found to crawl"},
		{err: errors.New(""), expected: "Unknown error"},
		{err: nil, expected: "Unknown error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if err := NewStreamWriter(rec).Fail(tt.err); err != nil {
			t.Fatalf("fail: %v", err)
		}
		lines := readLines(t, rec.Body.String())
		if len(lines) != 1 || lines[0]["status"] != "error" || lines[0]["error"] != tt.expected {
			t.Fatalf("lines = %v, want error %q", lines, tt.expected)
		}
	}
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("client went away")
}

func TestStreamWriterKeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	sw := NewStreamWriter(w)
	report := sw.Reporter()

	report(models.Progress(models.StatusCrawling, "one"))
	report(models.Progress(models.StatusCrawling, "two"))
	if sw.Err() == nil {
		t.Fatal("expected write error")
	}
	if err := sw.Complete(&models.CrawlResult{}); err == nil {
		t.Fatal("expected complete to report the earlier error")
	}
	if w.writes != 1 {
		t.Fatalf("writes = %d, want 1", w.writes)
	}
}

func TestSetStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetStreamHeaders(rec.Header())

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("cache-control = %q", got)
	}
	if got := rec.Header().Get("Connection"); got != "keep-alive" {
		t.Fatalf("connection = %q", got)
	}
}

func TestWriteDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "site", "llms.txt")
	if err := WriteDocument(path, "# Example\n"); err != nil {
		t.Fatalf("write document: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if string(data) != "# Example\n" {
		t.Fatalf("document = %q", data)
	}
}
