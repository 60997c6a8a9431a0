// Package module wires the locality endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "landpulse/internal/modkit"
	"landpulse/internal/modkit/httpkit"
	str "landpulse/internal/platform/strings"
	lochttp "landpulse/internal/services/api/localities/http"
)

// Ports exported by the localities module
type Ports struct {
	Directory lochttp.Directory
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	ports    Ports
}

// New constructs a localities module over dir
func New(deps modkit.Deps, dir lochttp.Directory, opts ...modkit.Option) *Module {
	if dir == nil {
		panic("localities module requires a non nil Directory")
	}
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("localities"),
		modkit.WithPrefix("/localities"),
	}, opts...)...)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		ports:  Ports{Directory: dir},
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		lochttp.Register(r, dir)
		external(r)
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// MountPages mounts / and /get_locality_geojson on the root router
func (m *Module) MountPages(r httpkit.Router) {
	lochttp.RegisterPages(r, m.ports.Directory)
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "localities") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
