package harvest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testListingURL = "https://example.gov/filerepo/reports?page=0"
	testDetailURL  = "https://example.gov/reports/9912"
)

const detailPage = `<html><body>
	<h1>National Hemp Report</h1>
	<a href="/files/National%20Hemp%20Report%2008-27-2025.pdf">Download</a>
</body></html>`

// emptyShell is what a JS-rendered listing looks like to a plain client.
const emptyShell = `<html><body><div id="app"></div></body></html>`

// stubFetcher serves canned bodies keyed by URL and counts requests.
type stubFetcher struct {
	pages map[string][]byte
	errs  map[string]error
	calls map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: map[string][]byte{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *stubFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResult, error) {
	f.calls[req.URL]++
	if err := f.errs[req.URL]; err != nil {
		return FetchResult{}, err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return FetchResult{}, fmt.Errorf("unexpected fetch: %s", req.URL)
	}
	return FetchResult{URL: req.URL, StatusCode: 200, Body: body}, nil
}

// stubRenderer serves canned DOM snapshots keyed by page URL.
type stubRenderer struct {
	pages map[string][]byte
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, pageURL string, _ string) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	body, ok := r.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("unexpected render: %s", pageURL)
	}
	return body, nil
}

func newTestOrchestrator(f Fetcher, r Renderer) *Orchestrator {
	return NewOrchestrator(f, r, NewDeadline(time.Minute), OrchestratorConfig{
		ListingURL:   testListingURL,
		BaseURL:      "https://example.gov",
		AttemptPause: time.Millisecond,
	}, nil)
}

func TestHarvestSucceedsOnPlainHTTP(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[testListingURL] = []byte(listingPage)
	fetcher.pages[testDetailURL] = []byte(detailPage)
	renderer := &stubRenderer{}

	art, err := newTestOrchestrator(fetcher, renderer).Harvest(context.Background())
	require.NoError(t, err)

	require.Equal(t, TierHTTP, art.Tier)
	require.Equal(t, testDetailURL, art.DetailURL)
	require.Equal(t, "https://example.gov/files/National%20Hemp%20Report%2008-27-2025.pdf", art.ArtifactURL)
	require.Equal(t, "National Hemp Report 08-27-2025.pdf", art.Filename)

	require.Equal(t, 1, fetcher.calls[testListingURL])
	require.Zero(t, renderer.calls, "headless tier must not run when plain http succeeds")
}

func TestHarvestFallsBackToHeadless(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[testListingURL] = []byte(emptyShell)
	renderer := &stubRenderer{pages: map[string][]byte{
		testListingURL: []byte(listingPage),
		testDetailURL:  []byte(detailPage),
	}}

	art, err := newTestOrchestrator(fetcher, renderer).Harvest(context.Background())
	require.NoError(t, err)

	require.Equal(t, TierHeadless, art.Tier)
	require.Equal(t, "National Hemp Report 08-27-2025.pdf", art.Filename)

	require.Equal(t, 2, fetcher.calls[testListingURL], "plain http is tried exactly twice before falling back")
	require.Equal(t, 2, renderer.calls, "headless renders listing then detail")
}

func TestHarvestFatalWithoutRenderer(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.errs[testListingURL] = &HTTPError{Status: 403, URL: testListingURL}

	_, err := newTestOrchestrator(fetcher, nil).Harvest(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRendererUnavailable)
	require.Equal(t, 2, fetcher.calls[testListingURL])
}

func TestHarvestHeadlessFailureIsFatal(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[testListingURL] = []byte(emptyShell)
	renderer := &stubRenderer{err: ErrRenderTimeout}

	_, err := newTestOrchestrator(fetcher, renderer).Harvest(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRenderTimeout)
}

func TestHarvestRecoversOnSecondAttempt(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[testListingURL] = []byte(listingPage)
	fetcher.pages[testDetailURL] = []byte(detailPage)
	// The detail fetch fails once, so the first pass fails after locating
	// the entry; the second pass succeeds end to end.
	first := true
	flaky := fetchFunc(func(ctx context.Context, req FetchRequest) (FetchResult, error) {
		if req.URL == testDetailURL && first {
			first = false
			return FetchResult{}, &HTTPError{Status: 500, URL: req.URL}
		}
		return fetcher.Fetch(ctx, req)
	})
	renderer := &stubRenderer{}

	art, err := newTestOrchestrator(flaky, renderer).Harvest(context.Background())
	require.NoError(t, err)
	require.Equal(t, TierHTTP, art.Tier)
	require.Zero(t, renderer.calls)
}

type fetchFunc func(ctx context.Context, req FetchRequest) (FetchResult, error)

func (f fetchFunc) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	return f(ctx, req)
}
