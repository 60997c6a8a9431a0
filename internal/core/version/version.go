// Package version provides information about the build version of the service.
package version

// BuildInfo holds version information about the service build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Info() BuildInfo {
	// Set via -ldflags "-X 'landpulse/internal/core/version.version=v0.1.0'
	// -X 'landpulse/internal/core/version.commit=abcd' -X 'landpulse/internal/core/version.date=2025-03-10'"
	return BuildInfo{
		Service: Service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// Service is the name the API reports for itself
const Service = "landpulse-api"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// String renders "version (commit, date)" for CLI output
func (b BuildInfo) String() string {
	return b.Version + " (" + b.Commit + ", " + b.Date + ")"
}
