// Package modkit provides module wiring and core deps
package modkit

import (
	"landpulse/internal/modkit/repokit"
	"landpulse/internal/platform/config"
	"landpulse/internal/platform/logger"
	"landpulse/internal/platform/store"

	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds core dependencies passed to modules
// PG, CH and Metrics are optional; modules nil check them
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Metrics prometheus.Registerer
}

// Registerer returns Metrics or a throwaway registry so modules can always register collectors
func (d Deps) Registerer() prometheus.Registerer {
	if d.Metrics == nil {
		return prometheus.NewRegistry()
	}
	return d.Metrics
}
