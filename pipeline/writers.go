package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/dottxt/models"
)

const fallbackStreamError = "Unknown error"

// SetStreamHeaders sets the headers of a progress stream response.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

type streamComplete struct {
	Status models.Status       `json:"status"`
	Result *models.CrawlResult `json:"result"`
}

type streamError struct {
	Status models.Status `json:"status"`
	Error  string        `json:"error"`
}

// StreamWriter writes newline-delimited JSON progress records and flushes
// each one as soon as it is written.
type StreamWriter struct {
	encoder *json.Encoder
	flusher http.Flusher
	mu      sync.Mutex
	err     error
}

// NewStreamWriter wraps w. Flushing happens when w implements http.Flusher.
func NewStreamWriter(w io.Writer) *StreamWriter {
	flusher, _ := w.(http.Flusher)
	return &StreamWriter{
		encoder: json.NewEncoder(w),
		flusher: flusher,
	}
}

// Reporter returns a models.Reporter that writes each event as one line.
// Write failures are kept for Err and never stop the run.
func (sw *StreamWriter) Reporter() models.Reporter {
	return func(p models.CrawlProgress) {
		_ = sw.write(p)
	}
}

// Complete writes the terminal success record.
func (sw *StreamWriter) Complete(result *models.CrawlResult) error {
	return sw.write(streamComplete{Status: models.StatusComplete, Result: result})
}

// Fail writes the terminal failure record.
func (sw *StreamWriter) Fail(err error) error {
	return sw.write(streamError{Status: models.StatusError, Error: ErrorMessage(err, fallbackStreamError)})
}

// Err returns the first write error.
func (sw *StreamWriter) Err() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.err
}

func (sw *StreamWriter) write(v any) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.err != nil {
		return sw.err
	}
	if err := sw.encoder.Encode(v); err != nil {
		sw.err = fmt.Errorf("encode stream record: %w", err)
		return sw.err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// WriteDocument saves a generated document to filename, creating parent
// directories as needed.
func WriteDocument(filename, content string) error {
	if err := ensureDir(filename); err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
