// Package ledger records one row per harvester run so operators can audit
// outcomes without replaying logs. Recording is best-effort and never
// affects the run's exit status.
package ledger

import (
	"context"
	"time"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     string
	Tier        string
	ArtifactURL string
	Filename    string
	Digest      string
	ErrorText   string
}

// Ledger persists run records.
type Ledger interface {
	Record(ctx context.Context, rec RunRecord) error
	Close()
}

// Noop discards records. Used when no DSN is configured.
type Noop struct{}

// Record does nothing.
func (Noop) Record(_ context.Context, _ RunRecord) error { return nil }

// Close does nothing.
func (Noop) Close() {}
