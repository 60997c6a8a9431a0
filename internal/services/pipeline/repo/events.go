package repo

import (
	"context"

	"landpulse/internal/modkit/repokit"
	perr "landpulse/internal/platform/errors"
	dom "landpulse/internal/services/pipeline/domain"
)

// EventsTable is the ClickHouse table for per month fetch events
const EventsTable = "frame_events"

// EventsDDL documents the expected ClickHouse table
const EventsDDL = `
CREATE TABLE IF NOT EXISTS frame_events (
  run_id     String,
  locality   String,
  idx        LowCardinality(String),
  month      String,
  ok         UInt8,
  reason     LowCardinality(String),
  elapsed_ms Int64,
  at         DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (locality, idx, at)`

var eventColumns = []string{"run_id", "locality", "idx", "month", "ok", "reason", "elapsed_ms", "at"}

// NewEvents returns an EventSink over a ClickHouse appender
func NewEvents(ch repokit.Appender) dom.EventSink {
	return &events{ch: ch}
}

type events struct{ ch repokit.Appender }

// Frames appends one row per event in a single batch
func (e *events) Frames(ctx context.Context, evs []dom.FrameEvent) error {
	if len(evs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(evs))
	for _, ev := range evs {
		var ok uint8
		if ev.OK {
			ok = 1
		}
		rows = append(rows, []any{
			ev.RunID, ev.Locality, string(ev.Index), ev.Month, ok, ev.Reason, ev.ElapsedMS, ev.At.UTC(),
		})
	}
	if err := e.ch.Insert(ctx, EventsTable, eventColumns, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "append %d frame events", len(evs))
	}
	return nil
}
