package service

import (
	"context"
	"slices"
	"time"

	"landpulse/internal/core/imagery"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"
	dom "landpulse/internal/services/pipeline/domain"

	"github.com/rs/zerolog"
)

// tracker walks one index through the state machine and records every transition
type tracker struct {
	s   *Service
	run *dom.Run
	pos int
	log zerolog.Logger
}

func (s *Service) track(ctx context.Context, run *dom.Run, idx imagery.Index) *tracker {
	now := time.Now().UTC()
	run.Indices = append(run.Indices, dom.IndexRun{
		RunID:     run.ID,
		Locality:  run.Locality,
		Index:     idx,
		StartedAt: now,
		UpdatedAt: now,
	})
	return &tracker{
		s:   s,
		run: run,
		pos: len(run.Indices) - 1,
		log: logger.C(ctx).With().
			Str("component", "pipeline").
			Str("locality", run.Locality).
			Str("index", idx.String()).
			Logger(),
	}
}

func (t *tracker) row() *dom.IndexRun { return &t.run.Indices[t.pos] }

// enter moves to stage; transitions out of a terminal stage are ignored
func (t *tracker) enter(ctx context.Context, stage dom.Stage) {
	r := t.row()
	if r.Stage.Terminal() {
		return
	}
	r.Stage = stage
	r.UpdatedAt = time.Now().UTC()
	t.log.Info().Str("stage", string(stage)).Msg("pipeline: stage")
	t.commit(ctx)
}

// fail moves to FAILED and keeps the stage it failed in
func (t *tracker) fail(ctx context.Context, err error) {
	r := t.row()
	if r.Stage.Terminal() {
		return
	}
	r.FailedAt = r.Stage
	r.Stage = dom.StageFailed
	r.Error = err.Error()
	r.UpdatedAt = time.Now().UTC()
	t.log.Error().Err(err).
		Str("stage", string(dom.StageFailed)).
		Str("failed_at", string(r.FailedAt)).
		Str("code", perr.CodeOf(err).String()).
		Msg("pipeline: stage")
	t.commit(ctx)
}

func (t *tracker) commit(ctx context.Context) {
	r := *t.row()
	t.s.Metrics.RecordStage(r.Index, r.Stage)
	t.s.remember(*t.run)
	if t.s.DB == nil {
		return
	}
	if err := t.s.Ledger.Bind(t.s.DB).Record(ctx, r); err != nil {
		t.log.Warn().Err(err).Str("stage", string(r.Stage)).Msg("pipeline: ledger write failed")
	}
}

// snapshot copies a run so cached values never alias the live one
func snapshot(r dom.Run) dom.Run {
	r.Indices = slices.Clone(r.Indices)
	for i := range r.Indices {
		r.Indices[i].Skipped = slices.Clone(r.Indices[i].Skipped)
	}
	return r
}
