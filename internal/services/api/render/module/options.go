package module

import (
	"landpulse/internal/platform/config"
)

// Options for the render module
type Options struct {
	RateRPS   float64
	RateBurst int
}

// FromConfig fills options from environment
// LANDPULSE_API_RATE_RPS (default 0.2) is the sustained /process rate per client IP, 0 disables limiting
// LANDPULSE_API_RATE_BURST (default 3) is the per client burst
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("LANDPULSE_API_")
	return Options{
		RateRPS:   c.MayFloat64("RATE_RPS", 0.2),
		RateBurst: c.MayInt("RATE_BURST", 3),
	}
}
