package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the subset of pgxpool.Pool the ledger uses; pgxmock satisfies it
// in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	run_id       UUID PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	outcome      TEXT NOT NULL,
	tier         TEXT NOT NULL DEFAULT '',
	artifact_url TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL DEFAULT '',
	digest       TEXT NOT NULL DEFAULT '',
	error_text   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertRun = `
INSERT INTO harvest_runs (run_id, started_at, finished_at, outcome, tier, artifact_url, filename, digest, error_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Postgres implements Ledger on a pgx connection pool.
type Postgres struct {
	pool db
}

// New connects to Postgres, verifies the connection, and ensures the
// harvest_runs table exists.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewWithDB wraps an existing pool-like connection. Used by tests.
func NewWithDB(pool db) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("ensure harvest_runs table: %w", err)
	}
	return nil
}

// Record inserts one run row.
func (p *Postgres) Record(ctx context.Context, rec RunRecord) error {
	_, err := p.pool.Exec(ctx, insertRun,
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.Outcome,
		rec.Tier,
		rec.ArtifactURL,
		rec.Filename,
		rec.Digest,
		rec.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
