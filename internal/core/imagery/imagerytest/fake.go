// Package imagerytest provides an in-memory imagery.Client for tests
package imagerytest

import (
	"context"
	"fmt"
	"sync"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"

	"github.com/paulmach/orb"
)

// Fake is a scripted imagery.Client
// zero maps mean zero images every month and no injected errors
type Fake struct {
	// BaseURL prefixes thumbnail URLs: {BaseURL}/{INDEX}/{YYYY-MM}.png
	BaseURL string

	Counts      map[period.Month]int
	CountErr    map[period.Month]error
	ThumbErr    map[period.Month]error
	MissingBand map[period.Month]bool
	QueryErr    error

	mu      sync.Mutex
	queries []imagery.Query
	thumbs  []imagery.Visualization
}

// Query records q and returns a collection over the scripted months
func (f *Fake) Query(_ context.Context, q imagery.Query) (imagery.Collection, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return collection{f: f}, nil
}

// Queries returns every query seen so far
func (f *Fake) Queries() []imagery.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imagery.Query(nil), f.queries...)
}

// Thumbnails returns every visualization requested so far
func (f *Fake) Thumbnails() []imagery.Visualization {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imagery.Visualization(nil), f.thumbs...)
}

// URL is the thumbnail URL the fake hands out for idx and m
func (f *Fake) URL(idx imagery.Index, m period.Month) string {
	return fmt.Sprintf("%s/%s/%s.png", f.BaseURL, idx, m)
}

type collection struct {
	f     *Fake
	month *period.Month
}

func (c collection) Month(m period.Month) imagery.Collection { return collection{f: c.f, month: &m} }

func (c collection) Count(_ context.Context) (int, error) {
	if c.month == nil {
		n := 0
		for _, v := range c.f.Counts {
			n += v
		}
		return n, nil
	}
	if err := c.f.CountErr[*c.month]; err != nil {
		return 0, err
	}
	return c.f.Counts[*c.month], nil
}

func (c collection) Mean(idx imagery.Index) imagery.Image {
	return image{f: c.f, month: c.month, idx: idx}
}

type image struct {
	f     *Fake
	month *period.Month
	idx   imagery.Index
}

func (i image) Bands() []string {
	if i.month != nil && i.f.MissingBand[*i.month] {
		return nil
	}
	return []string{string(i.idx)}
}

func (i image) Thumbnail(_ context.Context, vis imagery.Visualization, _ orb.Polygon) (string, error) {
	if err := vis.Validate(); err != nil {
		return "", err
	}
	i.f.mu.Lock()
	i.f.thumbs = append(i.f.thumbs, vis)
	i.f.mu.Unlock()
	if i.month == nil {
		return "", fmt.Errorf("imagerytest: thumbnail of an unreduced collection")
	}
	if err := i.f.ThumbErr[*i.month]; err != nil {
		return "", err
	}
	return i.f.URL(i.idx, *i.month), nil
}
