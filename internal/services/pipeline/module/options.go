package module

import (
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"
	"landpulse/internal/platform/config"
	svc "landpulse/internal/services/pipeline/service"
)

// Options for the pipeline module
type Options struct {
	OutputDir       string
	Window          period.Window
	MaxCloud        float64
	DownloadTimeout time.Duration
	Dimension       int
	Mode            imagery.RenderMode
	Labels          bool
	RecentTTL       time.Duration
	EnsureSchema    bool
}

// FromConfig fills options from environment
// LANDPULSE_OUTPUT_DIR (default "outputs") is where {locality}_gifs/ directories are written
// LANDPULSE_WINDOW_START / LANDPULSE_WINDOW_END (default 2025-01-01 / 2025-03-10) bound the imagery window, both inclusive
// LANDPULSE_MAX_CLOUD (default 20) is the CLOUDY_PIXEL_PERCENTAGE ceiling
// LANDPULSE_RENDER_MODE (default "palette") is palette or mask
// LANDPULSE_FRAME_LABELS (default false) stamps YYYY-MM on every frame
// LANDPULSE_LEDGER_SCHEMA (default true) creates pipeline_runs on start when Postgres is enabled
func FromConfig(cfg config.Conf) Options {
	d := svc.DefaultConfig()
	c := cfg.Prefix("LANDPULSE_")
	return Options{
		OutputDir: c.MayString("OUTPUT_DIR", d.OutputDir),
		Window: period.Window{
			Start: c.MayDate("WINDOW_START", d.Window.Start),
			End:   c.MayDate("WINDOW_END", d.Window.End),
		},
		MaxCloud:        c.MayFloat64("MAX_CLOUD", d.MaxCloud),
		DownloadTimeout: c.MayDuration("DOWNLOAD_TIMEOUT", d.DownloadTimeout),
		Dimension:       c.MayInt("THUMB_DIMENSION", d.Dimension),
		Mode:            imagery.RenderMode(c.MayEnum("RENDER_MODE", string(d.Mode), string(imagery.ModePalette), string(imagery.ModeMask))),
		Labels:          c.MayBool("FRAME_LABELS", false),
		RecentTTL:       c.MayDuration("RECENT_RUN_TTL", d.RecentTTL),
		EnsureSchema:    c.MayBool("LEDGER_SCHEMA", true),
	}
}

// Service turns options into the service config
func (o Options) Service() svc.Config {
	c := svc.DefaultConfig()
	c.OutputDir = o.OutputDir
	c.Window = o.Window
	c.MaxCloud = o.MaxCloud
	c.DownloadTimeout = o.DownloadTimeout
	c.Dimension = o.Dimension
	c.Mode = o.Mode
	c.Labels = o.Labels
	c.RecentTTL = o.RecentTTL
	return c
}
