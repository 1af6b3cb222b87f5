// Package web implements the plain-HTTP fetch tier using Colly: a pooled
// client with jittered cadence, status-based retry, exponential backoff,
// and deadline-aware failure.
package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/harvest"
	"github.com/hempwatch/harvester/internal/metrics"
)

// Config controls fetcher behavior. Zero values fall back to defaults in
// applyDefaults.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	RetryStatuses  []int
	JitterMin      time.Duration
	JitterMax      time.Duration
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 8 * time.Second
	}
	if len(c.RetryStatuses) == 0 {
		c.RetryStatuses = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	if c.JitterMin <= 0 {
		c.JitterMin = 400 * time.Millisecond
	}
	if c.JitterMax <= c.JitterMin {
		c.JitterMax = 2200 * time.Millisecond
	}
}

// Fetcher implements harvest.Fetcher with the Colly collector. Only GET is
// issued, so every request is safe to retry.
type Fetcher struct {
	cfg           Config
	deadline      *harvest.Deadline
	base          *colly.Collector
	retryStatuses map[int]struct{}
	logger        *zap.Logger

	// sleep is injectable so tests don't pay real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Fetcher sharing one pooled transport across sequential
// requests.
func New(cfg Config, deadline *harvest.Deadline, logger *zap.Logger) *Fetcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	// colly v2.1.0's Async option sets async mode regardless of its
	// argument; omit it to keep the collector synchronous.
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	// Retries revisit the same URL; the visit dedup store is shared across
	// clones.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport(cfg.ConnectTimeout))

	retryable := make(map[int]struct{}, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		retryable[s] = struct{}{}
	}

	return &Fetcher{
		cfg:           cfg,
		deadline:      deadline,
		base:          c,
		retryStatuses: retryable,
		logger:        logger,
		sleep:         sleepCtx,
	}
}

// Fetch executes a GET with jitter, retry, and backoff under the global
// deadline. It fails with a deadline error before issuing any I/O once the
// budget is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, req harvest.FetchRequest) (harvest.FetchResult, error) {
	var last attemptOutcome
	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if err := f.deadline.Ensure("fetch " + req.URL); err != nil {
			return harvest.FetchResult{}, err
		}
		if err := f.sleep(ctx, f.deadline.Bound(f.jitter())); err != nil {
			return harvest.FetchResult{}, fmt.Errorf("jitter wait: %w", err)
		}

		start := time.Now()
		last = f.attempt(ctx, req)
		if last.err == nil {
			metrics.ObserveFetchAttempt("success", time.Since(start))
			return last.result, nil
		}

		if !f.retryable(last) {
			metrics.ObserveFetchAttempt("failure", time.Since(start))
			return harvest.FetchResult{}, last.err
		}
		metrics.ObserveFetchAttempt("retry", time.Since(start))

		if attempt == f.cfg.MaxAttempts-1 {
			break
		}
		wait := f.backoff(attempt)
		if last.retryAfter > 0 {
			wait = last.retryAfter
		}
		wait = f.deadline.Bound(wait)
		f.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(last.err),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return harvest.FetchResult{}, fmt.Errorf("backoff wait: %w", err)
		}
	}

	return harvest.FetchResult{}, f.exhausted(last)
}

// attemptOutcome carries one attempt's result plus the signals retry
// classification needs.
type attemptOutcome struct {
	result     harvest.FetchResult
	err        error
	status     int
	retryAfter time.Duration
	timeout    bool
}

func (f *Fetcher) attempt(ctx context.Context, req harvest.FetchRequest) attemptOutcome {
	var out attemptOutcome

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.ReadTimeout)
	if !req.AllowRedirects {
		collector.SetRedirectHandler(func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		f.applyHeaders(req, r)
	})
	collector.OnResponse(func(r *colly.Response) {
		out.result = harvest.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		out.err = err
		if r != nil {
			out.status = r.StatusCode
			out.retryAfter = parseRetryAfter(r.Headers.Get("Retry-After"), time.Now())
		}
	})

	if err := f.runCollector(ctx, collector, req.URL); err != nil {
		out.err = err
	}
	if out.err != nil {
		out.timeout = isTimeout(out.err)
		if out.status != 0 {
			out.err = &harvest.HTTPError{Status: out.status, URL: req.URL}
		}
		out.result = harvest.FetchResult{}
	}
	return out
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func (f *Fetcher) applyHeaders(req harvest.FetchRequest, r *colly.Request) {
	if f.cfg.AcceptLanguage != "" {
		r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
	}
	if f.cfg.Referer != "" {
		r.Headers.Set("Referer", f.cfg.Referer)
	}
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
	for key, values := range req.Headers {
		for _, v := range values {
			r.Headers.Set(key, v)
		}
	}
}

func (f *Fetcher) retryable(out attemptOutcome) bool {
	if out.timeout {
		return true
	}
	if out.status != 0 {
		_, ok := f.retryStatuses[out.status]
		return ok
	}
	// Connection-level failures (refused, reset) are worth another try.
	var netErr net.Error
	return errors.As(out.err, &netErr) || errors.Is(out.err, context.DeadlineExceeded)
}

func (f *Fetcher) exhausted(out attemptOutcome) error {
	if out.timeout {
		return fmt.Errorf("%d attempts: %w", f.cfg.MaxAttempts, harvest.ErrFetchTimeout)
	}
	return out.err
}

// backoff grows the wait exponentially from the base, capped at the
// configured ceiling.
func (f *Fetcher) backoff(attempt int) time.Duration {
	wait := f.cfg.BackoffBase << uint(attempt)
	if wait > f.cfg.BackoffMax || wait <= 0 {
		wait = f.cfg.BackoffMax
	}
	return wait
}

// jitter picks a random delay in [JitterMin, JitterMax) so request cadence
// is never uniform.
func (f *Fetcher) jitter() time.Duration {
	span := f.cfg.JitterMax - f.cfg.JitterMin
	if span <= 0 {
		return f.cfg.JitterMin
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return f.cfg.JitterMin + span/2
	}
	return f.cfg.JitterMin + time.Duration(n.Int64())
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
