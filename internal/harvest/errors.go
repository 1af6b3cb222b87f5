package harvest

import (
	"errors"
	"fmt"
)

// Sentinel errors raised by the pipeline. Callers classify with errors.Is.
var (
	// ErrDeadlineExceeded means the global run budget ran out before the
	// operation could start. Always wrapped with a stage label.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrFetchTimeout means connect or read timeouts persisted through
	// every retry attempt.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrNoLinkFound means the latest listing row contains no links.
	ErrNoLinkFound = errors.New("no link found in latest row")

	// ErrArtifactNotFound means the detail page has no PDF link.
	ErrArtifactNotFound = errors.New("no pdf link found on detail page")

	// ErrRenderTimeout means the awaited DOM marker never appeared within
	// the headless wait bound.
	ErrRenderTimeout = errors.New("render wait timed out")

	// ErrRendererUnavailable means headless fallback was needed but no
	// renderer is configured.
	ErrRendererUnavailable = errors.New("headless renderer unavailable")
)

// HTTPError is returned when a request ends with a non-retryable HTTP error
// status, or when retries on a retryable status are exhausted.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d fetching %s", e.Status, e.URL)
}

// StructureError is returned when an expected HTML structure is missing
// from a fetched or rendered page.
type StructureError struct {
	What string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("expected page structure not found: %s", e.What)
}
