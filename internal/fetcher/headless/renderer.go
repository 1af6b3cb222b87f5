// Package headless renders pages with Chrome via chromedp. It is the last
// fallback tier, used only after the plain HTTP strategy has failed twice.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/harvest"
)

// Config controls the headless browser session.
type Config struct {
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// NavTimeout is the upper bound for one render; the effective wait is
	// min(NavTimeout, remaining deadline).
	NavTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1920
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1080
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
}

// Renderer implements harvest.Renderer. Each Render launches an isolated
// browser session and tears it down on every exit path so no OS-level
// process handles leak.
type Renderer struct {
	cfg      Config
	deadline *harvest.Deadline
	logger   *zap.Logger
}

// New builds a Renderer.
func New(cfg Config, deadline *harvest.Deadline, logger *zap.Logger) *Renderer {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		cfg:      cfg,
		deadline: deadline,
		logger:   logger,
	}
}

// Render navigates to pageURL, blocks until waitSelector is present in the
// rendered DOM, and returns the full HTML snapshot.
func (r *Renderer) Render(ctx context.Context, pageURL string, waitSelector string) ([]byte, error) {
	if err := r.deadline.Ensure("headless render " + pageURL); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(r.cfg.WindowWidth, r.cfg.WindowHeight),
	)
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	wait := r.deadline.Bound(r.cfg.NavTimeout)
	runCtx, cancel := context.WithTimeout(tabCtx, wait)
	defer cancel()

	r.logger.Info("headless render started",
		zap.String("url", pageURL),
		zap.String("wait_selector", waitSelector),
		zap.Duration("wait_bound", wait),
	)

	var html string
	start := time.Now()
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("waiting for %q on %s: %w", waitSelector, pageURL, harvest.ErrRenderTimeout)
		}
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	r.logger.Info("headless render finished",
		zap.String("url", pageURL),
		zap.Duration("duration", time.Since(start)),
		zap.Int("bytes", len(html)),
	)
	return []byte(html), nil
}
