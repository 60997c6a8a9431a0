// Package service runs the locality pipeline: query, composite, fetch frames, encode
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"landpulse/internal/core/animation"
	"landpulse/internal/core/composite"
	"landpulse/internal/core/frames"
	"landpulse/internal/core/imagery"
	"landpulse/internal/core/locality"
	"landpulse/internal/core/period"
	"landpulse/internal/modkit/repokit"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"
	dom "landpulse/internal/services/pipeline/domain"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultRecentTTL is how long finished runs stay in memory
const DefaultRecentTTL = 30 * time.Minute

// Config holds the fixed pipeline parameters
type Config struct {
	OutputDir string
	Window    period.Window
	MaxCloud  float64

	// Mode is palette (canonical) or mask
	Mode      imagery.RenderMode
	Dimension int
	Labels    bool

	DownloadTimeout time.Duration
	FrameDuration   time.Duration

	// RecentTTL bounds the in memory run cache; zero uses DefaultRecentTTL
	RecentTTL time.Duration
}

// DefaultConfig mirrors the fixed parameters of the hosted service
func DefaultConfig() Config {
	return Config{
		OutputDir:       "outputs",
		Window:          period.DefaultWindow,
		MaxCloud:        imagery.DefaultMaxCloud,
		Mode:            imagery.ModePalette,
		Dimension:       imagery.DefaultDimension,
		DownloadTimeout: frames.DefaultTimeout,
		FrameDuration:   animation.DefaultFrameDuration,
		RecentTTL:       DefaultRecentTTL,
	}
}

// Service wires the imagery client and locality store into the pipeline
type Service struct {
	Imagery    imagery.Client
	Localities *locality.Store
	Cfg        Config

	// DB and Ledger are optional; without them runs live only in memory
	DB     repokit.TxRunner
	Ledger repokit.Binder[dom.LedgerRepo]

	// Events is optional
	Events dom.EventSink

	// HTTP downloads thumbnails; nil uses http.DefaultClient
	HTTP    *http.Client
	Metrics *Metrics

	group  singleflight.Group
	recent *cache.Cache
}

// Option customizes a Service
type Option func(*Service)

// WithLedger records runs in Postgres through binder
func WithLedger(db repokit.TxRunner, binder repokit.Binder[dom.LedgerRepo]) Option {
	return func(s *Service) {
		if db != nil && binder != nil {
			s.DB, s.Ledger = db, binder
		}
	}
}

// WithEvents appends per month fetch events to sink
func WithEvents(sink dom.EventSink) Option { return func(s *Service) { s.Events = sink } }

// WithHTTPClient sets the thumbnail download client
func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.HTTP = c } }

// WithMetrics records Prometheus metrics
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.Metrics = m } }

// New constructs the pipeline service
func New(client imagery.Client, locs *locality.Store, cfg Config, opts ...Option) *Service {
	if client == nil {
		panic("pipeline.Service requires a non nil imagery.Client")
	}
	if locs == nil {
		panic("pipeline.Service requires a non nil locality.Store")
	}
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = DefaultRecentTTL
	}
	s := &Service{
		Imagery:    client,
		Localities: locs,
		Cfg:        cfg,
		recent:     cache.New(cfg.RecentTTL, 2*cfg.RecentTTL),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process renders NDVI then NDWI for the named locality.
// Concurrent calls for one locality share a single run, which ignores ctx cancellation
func (s *Service) Process(ctx context.Context, name string) (dom.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return dom.Result{}, perr.WithField(perr.Validationf("locality name is required"), "locality")
	}
	loc, err := s.Localities.Find(name)
	if err != nil {
		return dom.Result{}, err
	}

	v, err, shared := s.group.Do(loc.Name, func() (any, error) {
		return s.run(context.WithoutCancel(ctx), loc)
	})
	if shared {
		logger.C(ctx).Debug().Str("locality", loc.Name).Msg("pipeline: joined in-flight run")
	}
	res, _ := v.(dom.Result)
	return res, err
}

func (s *Service) run(ctx context.Context, loc locality.Locality) (dom.Result, error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := logger.C(ctx).With().Str("component", "pipeline").Str("locality", loc.Name).Logger()

	done := s.Metrics.RunStarted()
	defer done()

	start := time.Now()
	log.Info().Str("window", s.Cfg.Window.String()).Msg("pipeline: run start")

	run := &dom.Run{ID: runID, Locality: loc.Name}
	res := dom.Result{RunID: runID, Locality: loc.Name, Outputs: make(map[imagery.Index]string, len(imagery.Indices))}

	var coll imagery.Collection
	for _, idx := range imagery.Indices {
		t := s.track(ctx, run, idx)
		out, err := s.index(ctx, t, loc, &coll)
		if err != nil {
			t.fail(ctx, err)
			res.Run = snapshot(*run)
			s.Metrics.RecordRun(perr.CodeOf(err).String())
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline: run failed")
			return res, err
		}
		res.Outputs[idx] = out
	}

	res.Run = snapshot(*run)
	s.Metrics.RecordRun("done")
	log.Info().Dur("elapsed", time.Since(start)).Msg("pipeline: run done")
	return res, nil
}

// index drives one index from QUERYING to DONE; the collection is queried once per run
func (s *Service) index(ctx context.Context, t *tracker, loc locality.Locality, coll *imagery.Collection) (string, error) {
	idx := t.row().Index
	p, err := imagery.ProfileFor(idx)
	if err != nil {
		return "", err
	}

	t.enter(ctx, dom.StageQuerying)
	if *coll == nil {
		c, err := s.Imagery.Query(ctx, imagery.Query{
			Boundary: loc.Boundary,
			Window:   s.Cfg.Window,
			MaxCloud: s.Cfg.MaxCloud,
		})
		if err != nil {
			return "", err
		}
		*coll = c
	}

	t.enter(ctx, dom.StageCompositing)
	cs, err := composite.Build(ctx, *coll, idx, s.Cfg.Window)
	if err != nil {
		return "", err
	}
	t.row().Composites = composite.CountAvailable(cs)

	t.enter(ctx, dom.StageFetchingFrames)
	b := &frames.Builder{
		HTTP:      s.HTTP,
		Timeout:   s.Cfg.DownloadTimeout,
		Mode:      s.Cfg.Mode,
		Dimension: s.Cfg.Dimension,
		Labels:    s.Cfg.Labels,
		OnResult:  s.Metrics.RecordFrame,
	}
	results := b.Results(ctx, cs, p, loc.Boundary)
	s.emit(ctx, t, results)

	tally := frames.Count(results)
	t.row().Frames = tally.Fetched
	t.row().Skipped = frames.SkippedMonths(results)
	t.log.Info().
		Int("fetched", tally.Fetched).
		Int("skipped", tally.Skipped).
		Int("failed", tally.Failed).
		Msg("pipeline: frames")

	frs, err := frames.Fold(idx, results)
	if err != nil {
		return "", err
	}

	t.enter(ctx, dom.StageEncoding)
	encStart := time.Now()
	out, err := animation.Encode(frs, OutputPath(s.Cfg.OutputDir, loc.Name, idx), animation.Options{
		FrameDuration: s.Cfg.FrameDuration,
		Loop:          true,
	})
	s.Metrics.RecordEncode(idx, time.Since(encStart))
	if err != nil {
		return "", err
	}
	t.row().Output = out

	t.enter(ctx, dom.StageDone)
	return out, nil
}

// emit appends one event per attempted month; failures only log
func (s *Service) emit(ctx context.Context, t *tracker, results []frames.FrameResult) {
	if s.Events == nil || len(results) == 0 {
		return
	}
	r := t.row()
	now := time.Now().UTC()
	evs := make([]dom.FrameEvent, 0, len(results))
	for _, fr := range results {
		evs = append(evs, dom.FrameEvent{
			RunID:     r.RunID,
			Locality:  r.Locality,
			Index:     r.Index,
			Month:     fr.Month.String(),
			OK:        fr.OK(),
			Reason:    fr.Reason,
			ElapsedMS: fr.Elapsed.Milliseconds(),
			At:        now,
		})
	}
	if err := s.Events.Frames(ctx, evs); err != nil {
		t.log.Warn().Err(err).Int("events", len(evs)).Msg("pipeline: frame events not recorded")
	}
}

// Run returns a run from the recent cache, falling back to the ledger
func (s *Service) Run(ctx context.Context, id string) (dom.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return dom.Run{}, perr.WithField(perr.InvalidArgf("run id %q is not a uuid", id), "id")
	}
	if v, ok := s.recent.Get(runKey(id)); ok {
		return snapshot(v.(dom.Run)), nil
	}
	if s.DB == nil {
		return dom.Run{}, perr.NotFoundf("run %s not found", id)
	}
	rows, err := s.Ledger.Bind(s.DB).ByRun(ctx, id)
	if err != nil {
		return dom.Run{}, err
	}
	return dom.Run{ID: id, Locality: rows[0].Locality, Indices: rows}, nil
}

// Latest returns the most recent run for a locality still held in memory
func (s *Service) Latest(name string) (dom.Run, bool) {
	v, ok := s.recent.Get(localityKey(name))
	if !ok {
		return dom.Run{}, false
	}
	return snapshot(v.(dom.Run)), true
}

func (s *Service) remember(r dom.Run) {
	r = snapshot(r)
	s.recent.Set(runKey(r.ID), r, cache.DefaultExpiration)
	s.recent.Set(localityKey(r.Locality), r, cache.DefaultExpiration)
}

func runKey(id string) string        { return "run:" + id }
func localityKey(name string) string { return "locality:" + name }
