// Package locality loads named boundary polygons from a GeoJSON feature collection
// and resolves them by exact name
package locality

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	perr "landpulse/internal/platform/errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"golang.org/x/text/unicode/norm"
)

// DefaultNameProperty is the feature property holding the locality name
const DefaultNameProperty = "NAME_3"

// Locality is a named boundary, immutable after load
type Locality struct {
	Name     string
	Boundary orb.Polygon
}

// Bound is the bounding box of the boundary
func (l Locality) Bound() orb.Bound { return l.Boundary.Bound() }

type entry struct {
	loc Locality
	raw json.RawMessage
}

// Store is a read-only, process-wide set of localities
// safe for concurrent use after Load returns
type Store struct {
	byName map[string]entry
	names  []string
}

// Option tunes Load
type Option func(*loadCfg)

type loadCfg struct {
	nameProp string
}

// WithNameProperty overrides the property key holding the name
func WithNameProperty(key string) Option {
	return func(c *loadCfg) {
		if key = strings.TrimSpace(key); key != "" {
			c.nameProp = key
		}
	}
}

// Load reads and parses the feature file at path
func Load(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locality: read %s: %w", path, err)
	}
	return Parse(data, opts...)
}

// Parse builds a Store from GeoJSON FeatureCollection bytes
func Parse(data []byte, opts ...Option) (*Store, error) {
	cfg := loadCfg{nameProp: DefaultNameProperty}
	for _, o := range opts {
		o(&cfg)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("locality: parse feature collection: %w", err)
	}

	s := &Store{byName: make(map[string]entry, len(fc.Features))}
	for i, f := range fc.Features {
		raw, _ := f.Properties[cfg.nameProp].(string)
		name := norm.NFC.String(strings.TrimSpace(raw))
		if name == "" {
			return nil, fmt.Errorf("locality: feature %d has no %q property", i, cfg.nameProp)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("locality: duplicate name %q", name)
		}
		poly, err := boundary(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("locality: feature %q: %w", name, err)
		}
		js, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("locality: feature %q: %w", name, err)
		}
		s.byName[name] = entry{loc: Locality{Name: name, Boundary: poly}, raw: js}
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s, nil
}

// boundary picks the polygon used for queries; multipolygons use their largest member
func boundary(g orb.Geometry) (orb.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) < 4 {
			return nil, fmt.Errorf("polygon has no outer ring")
		}
		return v, nil
	case orb.MultiPolygon:
		var (
			best     orb.Polygon
			bestArea = -1.0
		)
		for _, p := range v {
			if len(p) == 0 || len(p[0]) < 4 {
				continue
			}
			if a := math.Abs(planar.Area(p)); a > bestArea {
				best, bestArea = p, a
			}
		}
		if best == nil {
			return nil, fmt.Errorf("multipolygon has no usable polygon")
		}
		return best, nil
	case nil:
		return nil, fmt.Errorf("missing geometry")
	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
	}
}

// Find resolves name by exact, case-sensitive match
func (s *Store) Find(name string) (Locality, error) {
	e, ok := s.lookup(name)
	if !ok {
		return Locality{}, perr.NotFoundf("locality %q not found", name)
	}
	return e.loc, nil
}

// Feature returns the raw GeoJSON feature for name
func (s *Store) Feature(name string) (json.RawMessage, error) {
	e, ok := s.lookup(name)
	if !ok {
		return nil, perr.NotFoundf("locality %q not found", name)
	}
	return e.raw, nil
}

// Names returns the sorted locality names; callers must not mutate the slice
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

// Len is the number of loaded localities
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

func (s *Store) lookup(name string) (entry, bool) {
	if s == nil {
		return entry{}, false
	}
	e, ok := s.byName[norm.NFC.String(name)]
	return e, ok
}
