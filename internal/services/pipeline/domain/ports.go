package domain

import (
	"context"
)

// RunnerPort is the public entrypoint exposed by the pipeline module
type RunnerPort interface {
	// Process renders both index animations for the named locality.
	// Concurrent calls for the same locality share one execution
	Process(ctx context.Context, locality string) (Result, error)

	// Run returns a recorded run by id from the ledger or the recent run cache
	Run(ctx context.Context, id string) (Run, error)

	// Latest returns the most recent run for a locality, if one is known
	Latest(locality string) (Run, bool)
}

// LedgerRepo persists run state transitions
type LedgerRepo interface {
	// Record upserts the (run, index) row
	Record(ctx context.Context, ir IndexRun) error

	// ByRun returns every index row of a run, ordered by start time
	ByRun(ctx context.Context, runID string) ([]IndexRun, error)
}

// EventSink appends per month fetch events
type EventSink interface {
	Frames(ctx context.Context, events []FrameEvent) error
}
