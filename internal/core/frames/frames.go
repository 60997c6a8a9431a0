// Package frames fetches one rendered thumbnail per available monthly composite
// and decodes it into an in-memory frame
package frames

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"landpulse/internal/core/composite"
	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"

	"github.com/paulmach/orb"
)

// DefaultTimeout bounds a single thumbnail download
const DefaultTimeout = 45 * time.Second

// maxThumbnailBytes caps a single download
const maxThumbnailBytes = 32 << 20

// Frame is one decoded month of an animation
type Frame struct {
	Month period.Month
	Image image.Image
}

// Skip reasons recorded on FrameResult
const (
	ReasonNoData      = "no_data"
	ReasonMissingBand = "missing_band"
	ReasonThumbnail   = "thumbnail"
	ReasonDownload    = "download"
	ReasonDecode      = "decode"
)

// FrameResult is the outcome for one month; exactly one of Frame or Reason is set
type FrameResult struct {
	Month   period.Month
	Frame   *Frame
	Err     error
	Reason  string
	Elapsed time.Duration
}

// OK reports whether the month produced a frame
func (r FrameResult) OK() bool { return r.Frame != nil }

// Skipped reports a month without data, which is not a failure
func (r FrameResult) Skipped() bool { return r.Reason == ReasonNoData }

// Builder turns composites into frames
type Builder struct {
	// HTTP downloads thumbnails; nil uses http.DefaultClient
	HTTP *http.Client
	// Timeout bounds each download; zero uses DefaultTimeout
	Timeout time.Duration
	// Mode selects palette or mask rendering
	Mode imagery.RenderMode
	// Dimension is the thumbnail size; zero uses imagery.DefaultDimension
	Dimension int
	// Labels stamps YYYY-MM on every frame
	Labels bool
	// OnResult observes every per-month result in order
	OnResult func(imagery.Index, FrameResult)
}

// Build fetches the frames for composites and folds the results
func (b *Builder) Build(ctx context.Context, composites []composite.Composite, p imagery.Profile, boundary orb.Polygon) ([]Frame, error) {
	return Fold(p.Index, b.Results(ctx, composites, p, boundary))
}

// Results fetches sequentially, one round trip per available month, and never retries
func (b *Builder) Results(ctx context.Context, composites []composite.Composite, p imagery.Profile, boundary orb.Polygon) []FrameResult {
	vis := p.Visualization(b.Mode, b.Dimension)
	log := logger.C(ctx).With().Str("component", "frames").Str("index", p.Index.String()).Logger()

	out := make([]FrameResult, 0, len(composites))
	for _, c := range composites {
		start := time.Now()
		res := b.one(ctx, c, vis, boundary)
		res.Elapsed = time.Since(start)

		switch {
		case res.OK():
			log.Debug().Str("month", c.Month.String()).Dur("elapsed", res.Elapsed).Msg("frame fetched")
		case res.Skipped():
			log.Warn().Str("month", c.Month.String()).Msg("no images for month; skipping")
		default:
			log.Error().Err(res.Err).Str("month", c.Month.String()).Str("reason", res.Reason).Msg("frame skipped")
		}
		if b.OnResult != nil {
			b.OnResult(p.Index, res)
		}
		out = append(out, res)
	}
	return out
}

func (b *Builder) one(ctx context.Context, c composite.Composite, vis imagery.Visualization, boundary orb.Polygon) FrameResult {
	res := FrameResult{Month: c.Month}
	img, ok := c.Image()
	if !ok {
		res.Reason = ReasonNoData
		return res
	}
	if !hasBand(img.Bands(), vis.Band) {
		res.Reason = ReasonMissingBand
		res.Err = fmt.Errorf("composite for %s lacks band %s", c.Month, vis.Band)
		return res
	}

	url, err := img.Thumbnail(ctx, vis, boundary)
	if err != nil {
		res.Reason, res.Err = ReasonThumbnail, err
		return res
	}

	body, err := b.download(ctx, url)
	if err != nil {
		res.Reason, res.Err = ReasonDownload, err
		return res
	}

	decoded, err := png.Decode(body)
	_ = body.Close()
	if err != nil {
		res.Reason, res.Err = ReasonDecode, fmt.Errorf("decode thumbnail: %w", err)
		return res
	}
	if b.Labels {
		decoded = Label(decoded, c.Month.String())
	}
	res.Frame = &Frame{Month: c.Month, Image: decoded}
	return res
}

// download returns the body of a 2xx response; the timeout covers the read as well
func (b *Builder) download(ctx context.Context, url string) (io.ReadCloser, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	client := b.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("thumbnail status %d", resp.StatusCode)
	}
	return cancelOnClose{Reader: io.LimitReader(resp.Body, maxThumbnailBytes), body: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.body.Close()
	c.cancel()
	return err
}

func hasBand(bands []string, want string) bool {
	for _, b := range bands {
		if b == want {
			return true
		}
	}
	return false
}

// Fold keeps the successful frames in month order and fails only when none succeeded
func Fold(idx imagery.Index, results []FrameResult) ([]Frame, error) {
	out := make([]Frame, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, *r.Frame)
		}
	}
	if len(out) == 0 {
		return nil, perr.Unavailablef("no valid image for %s", idx)
	}
	return out, nil
}

// Tally counts fetched, skipped and failed months
type Tally struct {
	Fetched int
	Skipped int
	Failed  int
}

// Count tallies results
func Count(results []FrameResult) Tally {
	var t Tally
	for _, r := range results {
		switch {
		case r.OK():
			t.Fetched++
		case r.Skipped():
			t.Skipped++
		default:
			t.Failed++
		}
	}
	return t
}

// SkippedMonths lists the months that produced no frame, for whatever reason
func SkippedMonths(results []FrameResult) []string {
	var out []string
	for _, r := range results {
		if !r.OK() {
			out = append(out, r.Month.String())
		}
	}
	return out
}
