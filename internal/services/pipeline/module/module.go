// Package module wires up the pipeline service as a modkit.Module
package module

import (
	"context"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/locality"
	"landpulse/internal/modkit"
	"landpulse/internal/modkit/httpkit"
	dom "landpulse/internal/services/pipeline/domain"
	prepo "landpulse/internal/services/pipeline/repo"
	svc "landpulse/internal/services/pipeline/service"
)

// Ports exported by the pipeline module
type Ports struct {
	Runner dom.RunnerPort
}

// Module implements modkit.Module for the pipeline
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs and wires the pipeline module using deps.Cfg
// the ledger schema is applied here when Postgres is enabled
func New(ctx context.Context, deps modkit.Deps, client imagery.Client, locs *locality.Store, extra ...svc.Option) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := opts.Service().Window.Validate(); err != nil {
		return nil, err
	}

	metrics, err := svc.NewMetrics(deps.Registerer())
	if err != nil {
		return nil, err
	}

	so := []svc.Option{svc.WithMetrics(metrics)}
	if deps.PG != nil {
		if opts.EnsureSchema {
			if err := prepo.EnsureSchema(ctx, deps.PG); err != nil {
				return nil, err
			}
		}
		so = append(so, svc.WithLedger(deps.PG, prepo.NewLedger()))
	}
	if deps.CH != nil {
		so = append(so, svc.WithEvents(prepo.NewEvents(deps.CH)))
	}
	so = append(so, extra...)

	s := svc.New(client, locs, opts.Service(), so...)

	deps.Log.Info().
		Str("output_dir", opts.OutputDir).
		Str("window", opts.Window.String()).
		Str("mode", string(opts.Mode)).
		Bool("ledger", deps.PG != nil).
		Bool("events", deps.CH != nil).
		Msg("pipeline module ready")

	return &Module{deps: deps, opts: opts, ports: Ports{Runner: s}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "pipeline" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// MountRoutes is a no-op: the pipeline is driven by the render module
func (m *Module) MountRoutes(_ httpkit.Router) {}
