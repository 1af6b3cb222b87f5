package harvest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/metrics"
)

// Number of plain-HTTP attempts before the headless tier is invoked.
const plainAttempts = 2

// OrchestratorConfig controls the harvest sequence.
type OrchestratorConfig struct {
	// ListingURL is the report listing page.
	ListingURL string
	// BaseURL resolves relative hrefs extracted from pages.
	BaseURL string
	// AttemptPause is the fixed pause between plain-HTTP attempts.
	AttemptPause time.Duration
	// RowWaitSelector is the DOM marker awaited on the rendered listing.
	RowWaitSelector string
	// ArtifactWaitSelector is the DOM marker awaited on the rendered
	// detail page.
	ArtifactWaitSelector string
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.AttemptPause <= 0 {
		c.AttemptPause = 3 * time.Second
	}
	if c.RowWaitSelector == "" {
		c.RowWaitSelector = "table tr"
	}
	if c.ArtifactWaitSelector == "" {
		c.ArtifactWaitSelector = `a[href$='.pdf' i]`
	}
}

// Orchestrator sequences locate -> resolve -> decide filename, selecting
// between the plain-HTTP and headless strategies. It is the single entry
// point the rest of the system calls to obtain the latest artifact.
type Orchestrator struct {
	fetcher  Fetcher
	renderer Renderer
	deadline *Deadline
	cfg      OrchestratorConfig
	logger   *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. renderer may be nil, in
// which case the headless tier is unavailable and two plain-HTTP failures
// become fatal.
func NewOrchestrator(
	fetcher Fetcher,
	renderer Renderer,
	deadline *Deadline,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:  fetcher,
		renderer: renderer,
		deadline: deadline,
		cfg:      cfg,
		logger:   logger,
	}
}

// Harvest runs the tiered state machine: TryHTTP(1) -> TryHTTP(2) ->
// Fallback(headless) -> Done | Fatal. Plain HTTP is cheap and succeeds the
// overwhelming majority of the time; the browser is reserved for markup
// changes or active blocking of simple clients.
func (o *Orchestrator) Harvest(ctx context.Context) (ResolvedArtifact, error) {
	base, err := url.Parse(o.cfg.BaseURL)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("parse base url: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= plainAttempts; attempt++ {
		art, err := o.harvestHTTP(ctx, base)
		if err == nil {
			metrics.ObserveTier(TierHTTP, "success")
			o.logger.Info("harvest succeeded on plain http tier",
				zap.Int("attempt", attempt),
				zap.String("artifact_url", art.ArtifactURL),
				zap.String("filename", art.Filename),
			)
			return art, nil
		}
		lastErr = err
		metrics.ObserveTier(TierHTTP, "failure")
		o.logger.Warn("plain http harvest attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < plainAttempts {
			o.pause(ctx)
		}
	}

	if o.renderer == nil {
		return ResolvedArtifact{}, fmt.Errorf("plain http tier exhausted (%w): %w", ErrRendererUnavailable, lastErr)
	}

	o.logger.Info("falling back to headless tier", zap.Error(lastErr))
	art, err := o.harvestHeadless(ctx, base)
	if err != nil {
		metrics.ObserveTier(TierHeadless, "failure")
		return ResolvedArtifact{}, fmt.Errorf("headless harvest: %w", err)
	}
	metrics.ObserveTier(TierHeadless, "success")
	o.logger.Info("harvest succeeded on headless tier",
		zap.String("artifact_url", art.ArtifactURL),
		zap.String("filename", art.Filename),
	)
	return art, nil
}

func (o *Orchestrator) harvestHTTP(ctx context.Context, base *url.URL) (ResolvedArtifact, error) {
	listing, err := o.fetcher.Fetch(ctx, FetchRequest{URL: o.cfg.ListingURL, AllowRedirects: true})
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("fetch listing page: %w", err)
	}

	entry, err := LocateLatest(listing.Body, base)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("locate latest entry: %w", err)
	}

	detail, err := o.fetcher.Fetch(ctx, FetchRequest{URL: entry.DetailURL, AllowRedirects: true})
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("fetch detail page: %w", err)
	}

	artifactURL, err := ResolveArtifact(detail.Body, base)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("resolve artifact: %w", err)
	}

	return ResolvedArtifact{
		DetailURL:   entry.DetailURL,
		ArtifactURL: artifactURL,
		Filename:    TargetFilename(entry, artifactURL),
		Tier:        TierHTTP,
	}, nil
}

func (o *Orchestrator) harvestHeadless(ctx context.Context, base *url.URL) (ResolvedArtifact, error) {
	listingDOM, err := o.renderer.Render(ctx, o.cfg.ListingURL, o.cfg.RowWaitSelector)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("render listing page: %w", err)
	}

	entry, err := LocateLatest(listingDOM, base)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("locate latest entry: %w", err)
	}

	detailDOM, err := o.renderer.Render(ctx, entry.DetailURL, o.cfg.ArtifactWaitSelector)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("render detail page: %w", err)
	}

	artifactURL, err := ResolveArtifact(detailDOM, base)
	if err != nil {
		return ResolvedArtifact{}, fmt.Errorf("resolve artifact: %w", err)
	}

	return ResolvedArtifact{
		DetailURL:   entry.DetailURL,
		ArtifactURL: artifactURL,
		Filename:    TargetFilename(entry, artifactURL),
		Tier:        TierHeadless,
	}, nil
}

func (o *Orchestrator) pause(ctx context.Context) {
	wait := o.deadline.Bound(o.cfg.AttemptPause)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
