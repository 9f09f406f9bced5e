package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/dottxt/models"
)

var (
	schemeRe = regexp.MustCompile(`(?i)^https?://`)
	brokenRe = regexp.MustCompile(`(?i)^https?:/([^/])`)
	repoRe   = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/?#]+)/([^/?#]+)`)
)

// NormalizeURL canonicalizes user input into an absolute URL. It never
// touches the network.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)

	// https:/host -> https://host
	u = brokenRe.ReplaceAllString(u, "https://$1")

	if !schemeRe.MatchString(u) {
		u = "https://" + u
	}

	// Repository pages collapse to the repository root.
	if m := repoRe.FindStringSubmatch(u); m != nil {
		return "https://github.com/" + m[1] + "/" + m[2]
	}
	return u
}

// ValidatePage ensures a scrape produced usable content.
func ValidatePage(p *models.ScrapedPage) error {
	if p == nil {
		return fmt.Errorf("page is nil")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("page missing url")
	}
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("page missing content for %s", p.URL)
	}
	return nil
}
