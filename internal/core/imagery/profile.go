package imagery

import (
	"slices"

	perr "landpulse/internal/platform/errors"
)

// Index names a normalized difference band added to every source image
type Index string

const (
	// NDVI is the vegetation index (B8 - B4) / (B8 + B4)
	NDVI Index = "NDVI"
	// NDWI is the water index (B3 - B8) / (B3 + B8)
	NDWI Index = "NDWI"
)

// Indices lists every index in processing order
var Indices = []Index{NDVI, NDWI}

// Profile carries the per-index band pair and render settings
type Profile struct {
	Index Index
	// Bands is the (a, b) pair of (a - b) / (a + b)
	Bands [2]string

	Min     float64
	Max     float64
	Palette []string

	Threshold float64
	MaskColor string
}

var profiles = map[Index]Profile{
	NDVI: {
		Index: NDVI,
		Bands: [2]string{"B8", "B4"},
		Min:   -0.2,
		Max:   1.0,
		// blue for water-like negatives, then brown through green
		Palette:   []string{"0000ff", "8b4513", "d2b48c", "ffff00", "adff2f", "008000", "006400"},
		Threshold: 0.25,
		MaskColor: "00FF00",
	},
	NDWI: {
		Index:     NDWI,
		Bands:     [2]string{"B3", "B8"},
		Min:       -1.0,
		Max:       1.0,
		Palette:   []string{"f5f5dc", "d2b48c", "87ceeb", "1e90ff", "00008b"},
		Threshold: 0.1,
		MaskColor: "0000FF",
	},
}

// ProfileFor returns the profile for idx
func ProfileFor(idx Index) (Profile, error) {
	p, ok := profiles[idx]
	if !ok {
		return Profile{}, perr.InvalidArgf("unknown index %q", idx)
	}
	p.Palette = slices.Clone(p.Palette)
	return p, nil
}

// MustProfile is ProfileFor for the built-in indices
func MustProfile(idx Index) Profile {
	p, err := ProfileFor(idx)
	if err != nil {
		panic(err)
	}
	return p
}

// Visualization derives the thumbnail settings for a render mode
func (p Profile) Visualization(mode RenderMode, dim int) Visualization {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if mode == ModeMask {
		return Visualization{
			Band:      string(p.Index),
			Min:       0,
			Max:       1,
			Palette:   []string{"000000", p.MaskColor},
			Dimension: dim,
			Mask:      true,
			Threshold: p.Threshold,
		}
	}
	return Visualization{
		Band:      string(p.Index),
		Min:       p.Min,
		Max:       p.Max,
		Palette:   slices.Clone(p.Palette),
		Dimension: dim,
	}
}

// String returns the index name
func (i Index) String() string { return string(i) }
