// Package domain defines the pipeline run model and ports
package domain

import (
	"time"

	"landpulse/internal/core/imagery"
)

// Stage is a step of the per index state machine
type Stage string

// QUERYING -> COMPOSITING -> FETCHING_FRAMES -> ENCODING -> DONE; FAILED from any stage
const (
	StageQuerying       Stage = "QUERYING"
	StageCompositing    Stage = "COMPOSITING"
	StageFetchingFrames Stage = "FETCHING_FRAMES"
	StageEncoding       Stage = "ENCODING"
	StageDone           Stage = "DONE"
	StageFailed         Stage = "FAILED"
)

// Terminal reports whether no further transition can happen
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// IndexRun is one (run, index) row of the ledger
type IndexRun struct {
	RunID      string        `json:"run_id"`
	Locality   string        `json:"locality"`
	Index      imagery.Index `json:"index"`
	Stage      Stage         `json:"stage"`
	FailedAt   Stage         `json:"failed_at,omitempty"`
	Composites int           `json:"composites"`
	Frames     int           `json:"frames"`
	Skipped    []string      `json:"skipped_months,omitempty"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Run groups the index rows of one pipeline execution
type Run struct {
	ID       string     `json:"id"`
	Locality string     `json:"locality"`
	Indices  []IndexRun `json:"indices"`
}

// Stage summarizes the run: FAILED if any index failed, DONE when all are done,
// otherwise the stage of the index in flight
func (r Run) Stage() Stage {
	if len(r.Indices) == 0 {
		return StageQuerying
	}
	done := true
	var current Stage
	for _, ir := range r.Indices {
		if ir.Stage == StageFailed {
			return StageFailed
		}
		if ir.Stage != StageDone {
			done = false
			current = ir.Stage
		}
	}
	if done && len(r.Indices) == len(imagery.Indices) {
		return StageDone
	}
	if current == "" {
		return StageQuerying
	}
	return current
}

// Result is what a finished run hands back to callers
type Result struct {
	RunID    string                   `json:"run_id"`
	Locality string                   `json:"locality"`
	Outputs  map[imagery.Index]string `json:"outputs"`
	Run      Run                      `json:"run"`
}

// Output returns the artifact path for idx, empty when missing
func (r Result) Output(idx imagery.Index) string { return r.Outputs[idx] }

// FrameEvent is one attempted month, appended to the event store
type FrameEvent struct {
	RunID     string
	Locality  string
	Index     imagery.Index
	Month     string
	OK        bool
	Reason    string
	ElapsedMS int64
	At        time.Time
}
