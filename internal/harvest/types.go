// Package harvest implements the resilient report harvest-and-sync pipeline:
// locating the newest listing entry, resolving its PDF, falling back to a
// headless render when the plain HTTP tier is blocked, and reconciling the
// result against the persisted marker in durable storage.
package harvest

import (
	"context"
	"net/http"
)

// Fallback tiers attempted by the orchestrator, in order.
const (
	TierHTTP     = "http"
	TierHeadless = "headless"
)

// FetchRequest captures everything needed for a single resilient GET.
type FetchRequest struct {
	URL            string
	AllowRedirects bool
	Headers        http.Header
}

// FetchResult is the terminal result of a resilient fetch. Body is fully
// buffered; callers discard it after extraction.
type FetchResult struct {
	// URL is the final URL after any redirects.
	URL        string
	StatusCode int
	Body       []byte
}

// Text returns the body decoded as a string.
func (r FetchResult) Text() string {
	return string(r.Body)
}

// ListingEntry describes the most recent row of the report listing page.
type ListingEntry struct {
	// DetailURL is the absolute URL of the report detail page.
	DetailURL string
	// ReportDate is normalized to MM-DD-YYYY; empty when the row carries
	// no recognizable date.
	ReportDate string
	// RawDate is the date token exactly as it appeared in the row.
	RawDate string
}

// ResolvedArtifact is the terminal output of a harvest: the report detail
// page, the PDF it links to, and the archive filename to store it under.
type ResolvedArtifact struct {
	DetailURL   string
	ArtifactURL string
	Filename    string
	// Tier records which fallback tier produced the result.
	Tier string
}

// Fetcher issues a single resilient HTTP GET, consuming part of the global
// deadline budget. Implementations retry transient failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// Renderer loads a page in a headless browser and returns the rendered DOM
// once an element matching waitSelector is present.
type Renderer interface {
	Render(ctx context.Context, pageURL string, waitSelector string) ([]byte, error)
}

// Hasher computes content digests for archived artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}
