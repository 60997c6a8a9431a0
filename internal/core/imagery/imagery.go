// Package imagery defines the remote imagery contract: spectral index profiles,
// render settings and the Client, Collection and Image seams an adapter implements
package imagery

import (
	"context"
	"fmt"
	"strings"

	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"

	"github.com/paulmach/orb"
)

// DefaultCollection is the surface reflectance collection queried by default
const DefaultCollection = "COPERNICUS/S2_SR_HARMONIZED"

// DefaultMaxCloud is the cloudy pixel percentage ceiling
const DefaultMaxCloud = 20.0

// DefaultDimension is the thumbnail size in pixels along the longer side
const DefaultDimension = 1024

// Query selects source images server-side
type Query struct {
	Boundary orb.Polygon
	Window   period.Window
	MaxCloud float64
}

// Validate checks the query before it is sent anywhere
func (q Query) Validate() error {
	if len(q.Boundary) == 0 || len(q.Boundary[0]) < 4 {
		return perr.InvalidArgf("imagery: boundary has no outer ring")
	}
	if err := q.Window.Validate(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "imagery: bad window")
	}
	if q.MaxCloud <= 0 || q.MaxCloud > 100 {
		return perr.InvalidArgf("imagery: max cloud %.1f out of range (0,100]", q.MaxCloud)
	}
	return nil
}

// Client runs queries against the remote service
type Client interface {
	// Query filters the collection by window, boundary and cloud cover and annotates
	// every image with the NDVI and NDWI bands
	Query(ctx context.Context, q Query) (Collection, error)
}

// Collection is a server-side image collection handle; building one is free,
// only Count and Image.Thumbnail perform round trips
type Collection interface {
	// Month narrows the collection to month m, clipped to the query window
	Month(m period.Month) Collection
	// Count returns the number of images in the collection
	Count(ctx context.Context) (int, error)
	// Mean reduces the collection to the per-pixel mean of one index band
	Mean(idx Index) Image
}

// Image is a server-side raster handle
type Image interface {
	// Bands lists the band names the image carries
	Bands() []string
	// Thumbnail asks the service to render the image and returns a fetchable URL
	Thumbnail(ctx context.Context, vis Visualization, boundary orb.Polygon) (string, error)
}

// RenderMode selects how index values map to colours
type RenderMode string

const (
	// ModePalette renders the full value range through the index colour ramp
	ModePalette RenderMode = "palette"
	// ModeMask paints pixels at or above the index threshold in a single colour
	ModeMask RenderMode = "mask"
)

// ParseRenderMode accepts palette or mask, case-insensitively
func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePalette, "":
		return ModePalette, nil
	case ModeMask:
		return ModeMask, nil
	}
	return "", perr.InvalidArgf("unknown render mode %q", s)
}

// Visualization is what a thumbnail request needs to colourize one band
type Visualization struct {
	Band      string
	Min       float64
	Max       float64
	Palette   []string
	Dimension int

	// Mask renders band >= Threshold as opaque and everything else transparent
	Mask      bool
	Threshold float64
}

// Validate rejects settings the service would refuse
func (v Visualization) Validate() error {
	switch {
	case v.Band == "":
		return perr.InvalidArgf("visualization: empty band")
	case v.Max <= v.Min:
		return perr.InvalidArgf("visualization: max %.2f must exceed min %.2f", v.Max, v.Min)
	case len(v.Palette) == 0:
		return perr.InvalidArgf("visualization: empty palette")
	case v.Dimension <= 0:
		return perr.InvalidArgf("visualization: dimension must be positive")
	}
	return nil
}

// String is a compact form for logs
func (v Visualization) String() string {
	if v.Mask {
		return fmt.Sprintf("%s>=%.2f %dpx", v.Band, v.Threshold, v.Dimension)
	}
	return fmt.Sprintf("%s[%.2f,%.2f] %dpx", v.Band, v.Min, v.Max, v.Dimension)
}
