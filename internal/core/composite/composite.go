// Package composite reduces a filtered collection to one composite per calendar month
package composite

import (
	"context"
	"sort"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"
)

// Composite is the monthly mean of one index, or a marker that the month had no images
type Composite struct {
	Month period.Month
	Index imagery.Index

	// Count is the number of source images reduced into the composite
	Count int
	image imagery.Image
}

// Available builds a composite carrying a raster
func Available(m period.Month, idx imagery.Index, count int, img imagery.Image) Composite {
	return Composite{Month: m, Index: idx, Count: count, image: img}
}

// Missing builds a composite for a month without source images
func Missing(m period.Month, idx imagery.Index) Composite {
	return Composite{Month: m, Index: idx}
}

// Available reports whether the month had source images
func (c Composite) Available() bool { return c.image != nil }

// Image returns the raster and true only for available composites
func (c Composite) Image() (imagery.Image, bool) { return c.image, c.image != nil }

// Build emits one composite per month of window, ascending.
// a month with zero images yields a Missing composite; a count error aborts the build
func Build(ctx context.Context, coll imagery.Collection, idx imagery.Index, window period.Window) ([]Composite, error) {
	if coll == nil {
		return nil, perr.InvalidArgf("composite: nil collection")
	}
	months := window.Months()
	if len(months) == 0 {
		return nil, perr.InvalidArgf("composite: window %s has no months", window)
	}

	out := make([]Composite, 0, len(months))
	for _, m := range months {
		monthly := coll.Month(m)
		n, err := monthly.Count(ctx)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "count %s images for %s", idx, m)
		}
		if n == 0 {
			out = append(out, Missing(m, idx))
			continue
		}
		out = append(out, Available(m, idx, n, monthly.Mean(idx)))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

// CountAvailable is the number of composites carrying a raster
func CountAvailable(cs []Composite) int {
	n := 0
	for _, c := range cs {
		if c.Available() {
			n++
		}
	}
	return n
}
