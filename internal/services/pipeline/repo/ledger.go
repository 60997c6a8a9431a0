// Package repo provides the pipeline run ledger (Postgres) and frame events (ClickHouse)
package repo

import (
	"context"
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/modkit/repokit"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/store"
	dom "landpulse/internal/services/pipeline/domain"
)

// Schema creates the ledger table; safe to run on every start
const Schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
  run_id      TEXT        NOT NULL,
  idx         TEXT        NOT NULL,
  locality    TEXT        NOT NULL,
  stage       TEXT        NOT NULL,
  failed_at   TEXT        NOT NULL DEFAULT '',
  composites  INTEGER     NOT NULL DEFAULT 0,
  frames      INTEGER     NOT NULL DEFAULT 0,
  skipped     TEXT[]      NOT NULL DEFAULT '{}',
  output      TEXT        NOT NULL DEFAULT '',
  error       TEXT        NOT NULL DEFAULT '',
  started_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (run_id, idx)
);
CREATE INDEX IF NOT EXISTS pipeline_runs_locality_idx ON pipeline_runs (locality, started_at DESC);`

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return perr.FromPostgresf(err, "ensure pipeline_runs schema")
}

// NewLedger returns a binder for the Postgres ledger
func NewLedger() repokit.Binder[dom.LedgerRepo] {
	return repokit.BindFunc[dom.LedgerRepo](func(q repokit.Queryer) dom.LedgerRepo {
		return &ledger{q: q}
	})
}

type ledger struct{ q repokit.Queryer }

// Record upserts the (run, index) row
func (l *ledger) Record(ctx context.Context, ir dom.IndexRun) error {
	skipped := ir.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	_, err := l.q.Exec(ctx, `
		INSERT INTO pipeline_runs
		  (run_id, idx, locality, stage, failed_at, composites, frames, skipped, output, error, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (run_id, idx) DO UPDATE SET
		  stage      = EXCLUDED.stage,
		  failed_at  = EXCLUDED.failed_at,
		  composites = EXCLUDED.composites,
		  frames     = EXCLUDED.frames,
		  skipped    = EXCLUDED.skipped,
		  output     = EXCLUDED.output,
		  error      = EXCLUDED.error,
		  updated_at = EXCLUDED.updated_at`,
		ir.RunID, string(ir.Index), ir.Locality, string(ir.Stage), string(ir.FailedAt),
		ir.Composites, ir.Frames, skipped, ir.Output, ir.Error,
		ir.StartedAt.UTC(), ir.UpdatedAt.UTC(),
	)
	return perr.FromPostgresf(err, "record run %s/%s", ir.RunID, ir.Index)
}

// ByRun returns every index row of a run; NotFound when the run is unknown
func (l *ledger) ByRun(ctx context.Context, runID string) ([]dom.IndexRun, error) {
	out, err := store.Many(ctx, l.q, scanIndexRun, `
		SELECT run_id, idx, locality, stage, failed_at, composites, frames, skipped, output, error, started_at, updated_at
		  FROM pipeline_runs
		 WHERE run_id = $1
		 ORDER BY started_at, idx`, runID)
	if err != nil {
		return nil, perr.FromPostgresf(err, "load run %s", runID)
	}
	if len(out) == 0 {
		return nil, perr.NotFoundf("run %s not found", runID)
	}
	return out, nil
}

func scanIndexRun(r repokit.Row) (dom.IndexRun, error) {
	var (
		ir                   dom.IndexRun
		idx, stage, failedAt string
		composites, frames   int32
		startedAt, updatedAt time.Time
	)
	if err := r.Scan(&ir.RunID, &idx, &ir.Locality, &stage, &failedAt, &composites, &frames,
		&ir.Skipped, &ir.Output, &ir.Error, &startedAt, &updatedAt); err != nil {
		return dom.IndexRun{}, err
	}
	ir.Index = imagery.Index(idx)
	ir.Stage = dom.Stage(stage)
	ir.FailedAt = dom.Stage(failedAt)
	ir.Composites, ir.Frames = int(composites), int(frames)
	ir.StartedAt, ir.UpdatedAt = startedAt.UTC(), updatedAt.UTC()
	return ir, nil
}
