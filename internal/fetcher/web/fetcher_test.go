package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hempwatch/harvester/internal/harvest"
)

// fastConfig keeps waits negligible so tests don't pay real delays.
func fastConfig() Config {
	return Config{
		UserAgent:      "test-agent/1.0",
		AcceptLanguage: "en-US,en;q=0.9",
		Referer:        "https://example.gov",
		MaxAttempts:    4,
		BackoffBase:    time.Millisecond,
		BackoffMax:     4 * time.Millisecond,
		JitterMin:      time.Millisecond,
		JitterMax:      time.Millisecond,
	}
}

func newTestFetcher(t *testing.T, cfg Config) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f := New(cfg, harvest.NewDeadline(time.Minute), nil)
	var sleeps []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return f, &sleeps
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotLang, gotRef string
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotRef = r.Header.Get("Referer")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, fastConfig())
	res, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL, AllowRedirects: true})
	require.NoError(t, err)

	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "<html>ok</html>", res.Text())
	require.Equal(t, 1, requests)
	require.Equal(t, "test-agent/1.0", gotUA)
	require.Equal(t, "en-US,en;q=0.9", gotLang)
	require.Equal(t, "https://example.gov", gotRef)
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, fastConfig())
	res, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})
	require.NoError(t, err)

	require.Equal(t, "recovered", res.Text())
	require.Equal(t, 3, requests)
}

func TestFetchDoesNotRetryClientError(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, fastConfig())
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})

	var httpErr *harvest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Status)
	require.Equal(t, 1, requests, "4xx other than 429 is terminal")
}

func TestFetchExhaustsRetries(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxAttempts = 3
	f, _ := newTestFetcher(t, cfg)
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})

	var httpErr *harvest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadGateway, httpErr.Status)
	require.Equal(t, 3, requests)
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, sleeps := newTestFetcher(t, fastConfig())
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})
	require.NoError(t, err)

	require.Contains(t, *sleeps, 7*time.Second, "server-provided wait replaces the backoff")
}

func TestFetchFailsFastOnSpentBudget(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	now := time.Unix(1000, 0)
	deadline := harvest.NewDeadlineAt(time.Second, func() time.Time {
		now = now.Add(2 * time.Second)
		return now
	})

	f := New(fastConfig(), deadline, nil)
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})

	require.ErrorIs(t, err, harvest.ErrDeadlineExceeded)
	require.Zero(t, requests, "no request once the budget is spent")
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{BackoffBase: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond}
	f := New(cfg, harvest.NewDeadline(time.Minute), nil)

	require.Equal(t, 100*time.Millisecond, f.backoff(0))
	require.Equal(t, 200*time.Millisecond, f.backoff(1))
	require.Equal(t, 400*time.Millisecond, f.backoff(2))
	require.Equal(t, 500*time.Millisecond, f.backoff(3))
	require.Equal(t, 500*time.Millisecond, f.backoff(20))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 8, 27, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	require.Equal(t, time.Duration(0), parseRetryAfter("-5", now))
	require.Equal(t, time.Duration(0), parseRetryAfter("", now))
	require.Equal(t, time.Duration(0), parseRetryAfter("soon", now))

	at := now.Add(90 * time.Second).Format(http.TimeFormat)
	require.Equal(t, 90*time.Second, parseRetryAfter(at, now))

	past := now.Add(-time.Minute).Format(http.TimeFormat)
	require.Equal(t, time.Duration(0), parseRetryAfter(past, now))
}
