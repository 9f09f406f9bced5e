// Package models defines data structures shared by the crawl pipeline.
package models

// Status is the phase carried by a progress event.
type Status string

const (
	StatusCrawling   Status = "crawling"
	StatusProcessing Status = "processing"
	StatusEnhancing  Status = "enhancing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// CrawlProgress is one status update emitted while a document is generated.
type CrawlProgress struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Current *int   `json:"current,omitempty"`
	Total   *int   `json:"total,omitempty"`
}

// Progress builds an event without counters.
func Progress(status Status, message string) CrawlProgress {
	return CrawlProgress{Status: status, Message: message}
}

// ProgressOf builds an event carrying current/total counters.
func ProgressOf(status Status, message string, current, total int) CrawlProgress {
	return CrawlProgress{Status: status, Message: message, Current: &current, Total: &total}
}

// ScrapedPage is the content of one successfully scraped page.
type ScrapedPage struct {
	URL      string         `json:"url"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Collection is the output of the page collector.
type Collection struct {
	Pages      []ScrapedPage
	TotalPages int
}

// ResultMetadata describes how a CrawlResult was produced.
type ResultMetadata struct {
	PagesScraped int  `json:"pagesScraped"`
	TotalPages   int  `json:"totalPages"`
	FullVersion  bool `json:"fullVersion"`
}

// CrawlResult is the generated document for one request.
type CrawlResult struct {
	Content  string          `json:"content"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

// Reporter receives progress events. A nil Reporter discards them.
type Reporter func(CrawlProgress)

// Emit forwards p to r when r is set.
func (r Reporter) Emit(p CrawlProgress) {
	if r != nil {
		r(p)
	}
}
