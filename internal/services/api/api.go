// Package api provides the HTTP API for the application
package api

import (
	"context"
	"net/http"
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/locality"
	"landpulse/internal/platform/config"
	"landpulse/internal/platform/logger"
	phttp "landpulse/internal/platform/net/http"
	"landpulse/internal/platform/net/middleware"
	"landpulse/internal/platform/store"

	"landpulse/internal/modkit"
	"landpulse/internal/modkit/httpkit"
	"landpulse/internal/modkit/module"
	"landpulse/internal/modkit/swaggerkit"

	locmod "landpulse/internal/services/api/localities/module"
	metamod "landpulse/internal/services/api/meta/module"
	rendermod "landpulse/internal/services/api/render/module"
	pipelinemod "landpulse/internal/services/pipeline/module"
	psvc "landpulse/internal/services/pipeline/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Imagery        imagery.Client
	Localities     *locality.Store
	Registry       *prometheus.Registry
	EnableSwagger  bool
	EnableProfiler bool

	// Pipeline customizes the pipeline service, mostly for tests
	Pipeline []psvc.Option
}

// pager is implemented by modules that also serve root level pages
type pager interface {
	MountPages(r httpkit.Router)
}

// Mount mounts the API service onto the given router
// r must be the root router: the common middleware stack is applied here, once
func Mount(ctx context.Context, r phttp.Router, opt Options) error {
	api := opt.Config.Prefix("LANDPULSE_API_")
	r.Use(httpkit.CommonStack(httpkit.StackOptions{
		CORSOrigins: api.MayCSV("CORS_ORIGINS", nil),
		Timeout:     api.MayDuration("REQUEST_TIMEOUT", 15*time.Minute),
		SlowRequest: api.MayDuration("SLOW_REQUEST", 30*time.Second),
	})...)

	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		opt.logger().Debug().Err(err).Msg("go collector already registered")
	}

	// shared deps for modules
	deps := modkit.Deps{
		Log:     *opt.logger(),
		Cfg:     opt.Config,
		Metrics: reg,
	}
	if opt.Store != nil {
		deps.PG, deps.CH = opt.Store.PG, opt.Store.CH
	}

	// Construct the pipeline first and extract its Runner port
	pipeline, err := pipelinemod.New(ctx, deps, opt.Imagery, opt.Localities, opt.Pipeline...)
	if err != nil {
		return err
	}
	runner := module.MustPortsOf[pipelinemod.Ports](pipeline).Runner

	locs := locmod.New(deps, opt.Localities)
	mods := []module.Module{
		metamod.New(deps, modkit.WithPorts(metamod.Ports{Localities: opt.Localities.Len})),
		locs,
		pipeline, // include the pipeline so its ports are registered
		rendermod.New(deps, pipeline.Options().OutputDir, modkit.WithPorts(rendermod.Ports{
			Runner: runner,
			Exists: func(name string) bool {
				_, err := opt.Localities.Find(name)
				return err == nil
			},
		})),
	}

	// Swagger + profiler + metrics
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// versioned JSON API
	httpkit.MountAPIV1(r, []func(http.Handler) http.Handler{middleware.NoCache()}, func(v1 httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(v1)
		}
	})

	// pages and legacy routes at the root
	for _, m := range mods {
		if p, ok := m.(pager); ok {
			p.MountPages(r)
		}
	}
	return nil
}

func (o Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Get()
}
