package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/app"
	"github.com/hempwatch/harvester/internal/fetcher/headless"
	"github.com/hempwatch/harvester/internal/fetcher/web"
	"github.com/hempwatch/harvester/internal/harvest"
	"github.com/hempwatch/harvester/internal/hash/sha256"
	"github.com/hempwatch/harvester/internal/indexer"
	"github.com/hempwatch/harvester/internal/ledger"
	"github.com/hempwatch/harvester/internal/metrics"
	"github.com/hempwatch/harvester/internal/notify"
)

// newHarvestCmd creates the 'harvest' subcommand, which executes one full
// check-locate-resolve-archive cycle and exits.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvest cycle",
		Long: `Checks the listing page for the latest report entry, resolves the PDF
behind it (falling back to a headless browser after two plain-HTTP
failures), and reconciles it against the archive and the last-seen
marker. The whole run operates under a fixed deadline budget.`,

		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	metrics.Init()
	if addr := a.Cfg.Metrics.Addr; addr != "" {
		stop := metrics.Serve(addr, a.Logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stop(ctx)
		}()
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logger := a.Logger.With(zap.String("run_id", runID))

	ctx, cancel := context.WithTimeout(cmd.Context(), a.Cfg.Budget())
	defer cancel()

	art, sync, err := executeRun(ctx, a, logger)
	finishedAt := time.Now()

	report(a, logger, notify.Event{
		RunID:       runID,
		Outcome:     string(sync.Outcome),
		Tier:        art.Tier,
		ArtifactURL: art.ArtifactURL,
		Filename:    art.Filename,
		Err:         err,
	}, ledger.RunRecord{
		RunID:       runID,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Outcome:     string(sync.Outcome),
		Tier:        art.Tier,
		ArtifactURL: art.ArtifactURL,
		Filename:    art.Filename,
		Digest:      sync.Digest,
		ErrorText:   errorText(err),
	})

	if err != nil {
		metrics.ObserveRun("failed")
		return err
	}
	metrics.ObserveRun("succeeded")
	logger.Info("harvest run finished",
		zap.String("outcome", string(sync.Outcome)),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)),
	)
	return nil
}

// executeRun builds the per-run pipeline and drives it: harvest the
// artifact, reconcile it into storage, and rebuild the archive index when
// something new was archived.
func executeRun(ctx context.Context, a *app.App, logger *zap.Logger) (harvest.ResolvedArtifact, harvest.SyncResult, error) {
	cfg := a.Cfg
	deadline := harvest.NewDeadline(cfg.Budget())
	profile := web.WeeklyProfile(time.Now())

	logger.Info("starting harvest run",
		zap.String("listing_url", cfg.Source.ListingURL),
		zap.Duration("budget", cfg.Budget()),
		zap.String("user_agent", profile.UserAgent),
	)

	fetcher := web.New(web.Config{
		UserAgent:      profile.UserAgent,
		AcceptLanguage: profile.AcceptLanguage,
		Referer:        cfg.Source.BaseURL,
		ConnectTimeout: time.Duration(cfg.HTTP.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		MaxAttempts:    cfg.HTTP.MaxAttempts,
		BackoffBase:    time.Duration(cfg.HTTP.BackoffBaseMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		RetryStatuses:  cfg.HTTP.RetryStatuses,
		JitterMin:      time.Duration(cfg.HTTP.JitterMinMs) * time.Millisecond,
		JitterMax:      time.Duration(cfg.HTTP.JitterMaxMs) * time.Millisecond,
	}, deadline, logger)

	var renderer harvest.Renderer
	if cfg.Headless.Enabled {
		renderer = headless.New(headless.Config{
			UserAgent:    profile.UserAgent,
			WindowWidth:  cfg.Headless.WindowWidth,
			WindowHeight: cfg.Headless.WindowHeight,
			NavTimeout:   time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
		}, deadline, logger)
	}

	orchestrator := harvest.NewOrchestrator(fetcher, renderer, deadline, harvest.OrchestratorConfig{
		ListingURL:   cfg.Source.ListingURL,
		BaseURL:      cfg.Source.BaseURL,
		AttemptPause: time.Duration(cfg.Run.AttemptPauseSeconds) * time.Second,
	}, logger)

	art, err := orchestrator.Harvest(ctx)
	if err != nil {
		return art, harvest.SyncResult{}, err
	}

	reconciler := harvest.NewReconciler(a.Store, fetcher, deadline, sha256.New(), harvest.ReconcilerConfig{
		ArchivePrefix: cfg.Storage.ArchivePrefix,
		MarkerPath:    cfg.Storage.MarkerPath,
	}, logger)

	sync, err := reconciler.Reconcile(ctx, art)
	if err != nil {
		return art, sync, err
	}

	if sync.Outcome == harvest.OutcomeUploaded && cfg.Index.Enabled {
		ix := indexer.New(a.Store, indexer.Config{
			ArchivePrefix: cfg.Storage.ArchivePrefix,
			MarkerPath:    cfg.Storage.MarkerPath,
			OutputPath:    cfg.Index.OutputPath,
			PublicBaseURL: cfg.Index.PublicBaseURL,
			Title:         cfg.Index.Title,
			PageSize:      cfg.Index.PageSize,
		}, logger)
		if err := ix.Rebuild(ctx); err != nil {
			// The artifact is archived and the marker advanced; a stale
			// index page is recoverable on the next upload.
			logger.Warn("index rebuild failed", zap.Error(err))
		}
	}

	return art, sync, nil
}

// report delivers the run summary to the notifier and the ledger. Both are
// best-effort; the parent context may already be expired, so each gets its
// own short window.
func report(a *app.App, logger *zap.Logger, event notify.Event, rec ledger.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Notifier.Notify(ctx, event.Subject(), event.Body()); err != nil {
		logger.Warn("notification failed", zap.Error(err))
	}
	if err := a.Ledger.Record(ctx, rec); err != nil {
		logger.Warn("run ledger write failed", zap.Error(err))
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
