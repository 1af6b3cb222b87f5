package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/metrics"
	"github.com/hempwatch/harvester/internal/storage"
)

// Outcome classifies what a reconcile run did.
type Outcome string

// Reconcile outcomes.
const (
	// OutcomeNoChange: the marker already points at this artifact.
	OutcomeNoChange Outcome = "no_change"
	// OutcomeSkipped: the archive object already exists from a partial
	// prior run; only the marker was advanced.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeUploaded: the artifact was downloaded and archived.
	OutcomeUploaded Outcome = "uploaded"
)

const artifactContentType = "application/pdf"

// ReconcilerConfig locates the marker and archive objects in storage.
type ReconcilerConfig struct {
	// ArchivePrefix is the logical directory artifacts are stored under.
	ArchivePrefix string
	// MarkerPath is the object holding the last archived artifact URL.
	MarkerPath string
}

// SyncResult carries the reconcile outcome plus archive diagnostics.
type SyncResult struct {
	Outcome     Outcome
	ArchivePath string
	// Digest is the sha256 of the archived bytes; set only on upload.
	Digest string
}

// Reconciler compares a resolved artifact against the persisted marker and
// performs the idempotent archive write. The marker is the sole
// deduplication signal; the object-existence check is a secondary guard
// against partial prior runs.
type Reconciler struct {
	store    storage.Store
	fetcher  Fetcher
	deadline *Deadline
	hasher   Hasher
	cfg      ReconcilerConfig
	logger   *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(
	store storage.Store,
	fetcher Fetcher,
	deadline *Deadline,
	hasher Hasher,
	cfg ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		fetcher:  fetcher,
		deadline: deadline,
		hasher:   hasher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Reconcile decides skip/upload/update for the resolved artifact. The
// marker is advanced only after a confirmed archive write or a confirmed
// pre-existing object, never before.
func (r *Reconciler) Reconcile(ctx context.Context, art ResolvedArtifact) (SyncResult, error) {
	marker := r.readMarker(ctx)
	if marker != "" && marker == art.ArtifactURL {
		r.logger.Info("no new report",
			zap.String("stage", "reconcile"),
			zap.String("artifact_url", art.ArtifactURL),
		)
		metrics.ObserveReconcile(string(OutcomeNoChange))
		return SyncResult{Outcome: OutcomeNoChange}, nil
	}

	archivePath := r.archivePath(art.Filename)

	exists, err := r.store.Exists(ctx, archivePath)
	if err != nil {
		return SyncResult{}, fmt.Errorf("check archive object %q: %w", archivePath, err)
	}
	if exists {
		r.logger.Info("archive object already present, advancing marker only",
			zap.String("stage", "reconcile"),
			zap.String("archive_path", archivePath),
		)
		if err := r.writeMarker(ctx, art.ArtifactURL); err != nil {
			return SyncResult{}, err
		}
		metrics.ObserveReconcile(string(OutcomeSkipped))
		return SyncResult{Outcome: OutcomeSkipped, ArchivePath: archivePath}, nil
	}

	body, err := r.downloadArtifact(ctx, art.ArtifactURL)
	if err != nil {
		return SyncResult{}, fmt.Errorf("download artifact: %w", err)
	}

	if err := r.store.Put(ctx, archivePath, artifactContentType, body); err != nil {
		return SyncResult{}, fmt.Errorf("archive artifact to %q: %w", archivePath, err)
	}

	digest := ""
	if r.hasher != nil {
		if digest, err = r.hasher.Hash(body); err != nil {
			digest = ""
		}
	}
	r.logger.Info("artifact archived",
		zap.String("stage", "reconcile"),
		zap.String("archive_path", archivePath),
		zap.Int("bytes", len(body)),
		zap.String("sha256", digest),
	)

	if err := r.writeMarker(ctx, art.ArtifactURL); err != nil {
		return SyncResult{}, err
	}
	metrics.ObserveReconcile(string(OutcomeUploaded))
	return SyncResult{Outcome: OutcomeUploaded, ArchivePath: archivePath, Digest: digest}, nil
}

// readMarker loads the last-seen artifact URL. Absence or read failure
// degrades to "no marker" so the run falls through to the existence check.
func (r *Reconciler) readMarker(ctx context.Context) string {
	data, err := r.store.Get(ctx, r.cfg.MarkerPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Info("no marker present", zap.String("marker_path", r.cfg.MarkerPath))
		} else {
			r.logger.Warn("marker read failed, treating as absent",
				zap.String("marker_path", r.cfg.MarkerPath),
				zap.Error(err),
			)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (r *Reconciler) writeMarker(ctx context.Context, artifactURL string) error {
	if err := r.store.Put(ctx, r.cfg.MarkerPath, "text/plain", []byte(artifactURL)); err != nil {
		return fmt.Errorf("write marker %q: %w", r.cfg.MarkerPath, err)
	}
	r.logger.Info("marker advanced",
		zap.String("marker_path", r.cfg.MarkerPath),
		zap.String("artifact_url", artifactURL),
	)
	return nil
}

// downloadArtifact fetches the binary, allowing one extra attempt beyond
// the fetcher's own retry policy before the failure turns fatal.
func (r *Reconciler) downloadArtifact(ctx context.Context, artifactURL string) ([]byte, error) {
	if err := r.deadline.Ensure("artifact download"); err != nil {
		return nil, err
	}
	req := FetchRequest{URL: artifactURL, AllowRedirects: true}
	res, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		r.logger.Warn("artifact download failed, retrying once",
			zap.String("artifact_url", artifactURL),
			zap.Error(err),
		)
		if err := r.deadline.Ensure("artifact download retry"); err != nil {
			return nil, err
		}
		if res, err = r.fetcher.Fetch(ctx, req); err != nil {
			return nil, err
		}
	}
	return res.Body, nil
}

func (r *Reconciler) archivePath(filename string) string {
	prefix := strings.TrimSuffix(r.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}
