// Package module wires /process, the results page and run lookups into the API
package module

import (
	"net/http"

	modkit "landpulse/internal/modkit"
	"landpulse/internal/modkit/httpkit"
	"landpulse/internal/platform/net/middleware"
	str "landpulse/internal/platform/strings"
	renderhttp "landpulse/internal/services/api/render/http"
	pdom "landpulse/internal/services/pipeline/domain"
)

// Ports consumed by the render module
type Ports struct {
	Runner pdom.RunnerPort
	Exists func(name string) bool
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	opts     Options
	hd       renderhttp.Deps
	register func(httpkit.Router)
}

// New constructs the render module. Ports must be injected with modkit.WithPorts
func New(deps modkit.Deps, outputDir string, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("render"),
		modkit.WithPrefix("/runs"),
	}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok || ports.Runner == nil {
		panic("render module requires Ports with a Runner")
	}

	o := FromConfig(deps.Cfg)
	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		opts:   o,
		hd: renderhttp.Deps{
			Runner:    ports.Runner,
			OutputDir: outputDir,
			Exists:    ports.Exists,
			Limit: middleware.RateLimit(middleware.RateLimitOptions{
				RPS:     o.RateRPS,
				Burst:   o.RateBurst,
				OnLimit: func(w http.ResponseWriter, _ *http.Request, err error) { httpkit.WriteFlatError(w, err) },
			}),
		},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		renderhttp.Register(r, m.hd)
		external(r)
	}
	return m
}

// MountRoutes mounts the run lookup under /api/v1
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// MountPages mounts /process, /results/{locality} and the static outputs on the root router
func (m *Module) MountPages(r httpkit.Router) {
	renderhttp.RegisterPages(r, m.hd)
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "render") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns nothing; render only consumes ports
func (m *Module) Ports() any { return nil }
