package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/imagery/imagerytest"
	"landpulse/internal/core/locality"
	"landpulse/internal/core/period"
	"landpulse/internal/modkit/repokit"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/store"
	dom "landpulse/internal/services/pipeline/domain"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geojson = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"NAME_3":"Rajarhat"},
  "geometry":{"type":"Polygon","coordinates":[[[88.4,22.5],[88.5,22.5],[88.5,22.6],[88.4,22.6],[88.4,22.5]]]}}]}`

var (
	jan = period.Month{Year: 2025, Month: time.January}
	feb = period.Month{Year: 2025, Month: time.February}
	mar = period.Month{Year: 2025, Month: time.March}
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	fake *imagerytest.Fake
	mt   *httpmock.MockTransport
	svc  *Service
	dir  string
}

func newFixture(t *testing.T, counts map[period.Month]int, opts ...Option) *fixture {
	t.Helper()
	locs, err := locality.Parse([]byte(geojson))
	require.NoError(t, err)

	f := &imagerytest.Fake{BaseURL: "https://thumbs.test/v1", Counts: counts}
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, `=~^https://thumbs\.test/v1/`, httpmock.NewBytesResponder(200, pngBytes(t)))

	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.DownloadTimeout = 2 * time.Second

	all := append([]Option{WithHTTPClient(&http.Client{Transport: mt})}, opts...)
	return &fixture{fake: f, mt: mt, svc: New(f, locs, cfg, all...), dir: cfg.OutputDir}
}

func TestProcess_WritesBothAnimations(t *testing.T) {
	fx := newFixture(t, map[period.Month]int{jan: 3, feb: 1, mar: 2})

	res, err := fx.svc.Process(context.Background(), "  Rajarhat ")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "Rajarhat", res.Locality)
	for _, idx := range imagery.Indices {
		want := filepath.Join(fx.dir, "Rajarhat_gifs", idx.String()+"_spatial.gif")
		assert.Equal(t, want, res.Output(idx))
		st, err := os.Stat(want)
		require.NoError(t, err)
		assert.Positive(t, st.Size())
	}

	// one query shared by both indices, six thumbnails
	assert.Len(t, fx.fake.Queries(), 1)
	assert.Equal(t, 6, fx.mt.GetTotalCallCount())

	require.Len(t, res.Run.Indices, 2)
	assert.Equal(t, dom.StageDone, res.Run.Stage())
	for _, ir := range res.Run.Indices {
		assert.Equal(t, dom.StageDone, ir.Stage)
		assert.Equal(t, 3, ir.Frames)
		assert.Equal(t, 3, ir.Composites)
		assert.Empty(t, ir.Skipped)
	}

	latest, ok := fx.svc.Latest("Rajarhat")
	require.True(t, ok)
	assert.Equal(t, res.RunID, latest.ID)

	got, err := fx.svc.Run(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, dom.StageDone, got.Stage())
}

func TestProcess_GapMonthIsSkipped(t *testing.T) {
	fx := newFixture(t, map[period.Month]int{jan: 1, mar: 1})

	res, err := fx.svc.Process(context.Background(), "Rajarhat")
	require.NoError(t, err)
	for _, ir := range res.Run.Indices {
		assert.Equal(t, 2, ir.Frames)
		assert.Equal(t, []string{"2025-02"}, ir.Skipped)
	}
	assert.Equal(t, 4, fx.mt.GetTotalCallCount())
}

func TestProcess_ZeroFramesFails(t *testing.T) {
	fx := newFixture(t, nil)

	res, err := fx.svc.Process(context.Background(), "Rajarhat")
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Contains(t, err.Error(), "no valid image for NDVI")

	_, statErr := os.Stat(OutputPath(fx.dir, "Rajarhat", imagery.NDVI))
	assert.True(t, os.IsNotExist(statErr), "no zero-frame output")

	require.Len(t, res.Run.Indices, 1, "NDWI is not attempted after NDVI fails")
	ir := res.Run.Indices[0]
	assert.Equal(t, dom.StageFailed, ir.Stage)
	assert.Equal(t, dom.StageFetchingFrames, ir.FailedAt)
	assert.Equal(t, dom.StageFailed, res.Run.Stage())
}

func TestProcess_QueryFailure(t *testing.T) {
	fx := newFixture(t, nil)
	fx.fake.QueryErr = perr.Unavailablef("earthengine: permission denied")

	res, err := fx.svc.Process(context.Background(), "Rajarhat")
	require.Error(t, err)
	assert.Equal(t, 503, perr.HTTPStatus(err))
	require.Len(t, res.Run.Indices, 1)
	assert.Equal(t, dom.StageQuerying, res.Run.Indices[0].FailedAt)
	assert.Zero(t, fx.mt.GetTotalCallCount())
}

func TestProcess_InputErrors(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.svc.Process(context.Background(), "   ")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation))
	assert.Equal(t, 400, perr.HTTPStatus(err))

	_, err = fx.svc.Process(context.Background(), "rajarhat")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound), "lookup is case sensitive")
	assert.Empty(t, fx.fake.Queries())
}

// gatedClient holds Query until release is closed
type gatedClient struct {
	imagery.Client
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedClient) Query(ctx context.Context, q imagery.Query) (imagery.Collection, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Client.Query(ctx, q)
}

func TestProcess_SameLocalitySharesOneRun(t *testing.T) {
	fx := newFixture(t, map[period.Month]int{jan: 1})
	gate := &gatedClient{Client: fx.fake, entered: make(chan struct{}), release: make(chan struct{})}
	fx.svc.Imagery = gate

	var wg sync.WaitGroup
	results := make([]dom.Result, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = fx.svc.Process(context.Background(), "Rajarhat")
	}()
	<-gate.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = fx.svc.Process(context.Background(), "Rajarhat")
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].RunID, results[1].RunID)
	assert.Len(t, fx.fake.Queries(), 1)
}

func TestProcess_DetachedFromCallerCancel(t *testing.T) {
	fx := newFixture(t, map[period.Month]int{jan: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.svc.Process(ctx, "Rajarhat")
	require.NoError(t, err)
}

type fakeLedger struct {
	mu   sync.Mutex
	rows []dom.IndexRun
	err  error
}

func (l *fakeLedger) Record(_ context.Context, ir dom.IndexRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, ir)
	return l.err
}

func (l *fakeLedger) ByRun(_ context.Context, id string) ([]dom.IndexRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	latest := map[imagery.Index]dom.IndexRun{}
	var order []imagery.Index
	for _, r := range l.rows {
		if r.RunID != id {
			continue
		}
		if _, ok := latest[r.Index]; !ok {
			order = append(order, r.Index)
		}
		latest[r.Index] = r
	}
	if len(order) == 0 {
		return nil, perr.NotFoundf("run %s not found", id)
	}
	out := make([]dom.IndexRun, 0, len(order))
	for _, idx := range order {
		out = append(out, latest[idx])
	}
	return out, nil
}

func (l *fakeLedger) stages(idx imagery.Index) []dom.Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []dom.Stage
	for _, r := range l.rows {
		if r.Index == idx {
			out = append(out, r.Stage)
		}
	}
	return out
}

type nopDB struct{}

func (nopDB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopDB) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopDB) QueryRow(context.Context, string, ...any) store.Row            { return nil }
func (d nopDB) Tx(ctx context.Context, fn func(store.RowQuerier) error) error {
	return fn(d)
}

type fakeSink struct {
	mu  sync.Mutex
	evs []dom.FrameEvent
}

func (s *fakeSink) Frames(_ context.Context, evs []dom.FrameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, evs...)
	return nil
}

func TestProcess_RecordsLedgerAndEvents(t *testing.T) {
	led := &fakeLedger{}
	sink := &fakeSink{}
	binder := repokit.BindFunc[dom.LedgerRepo](func(repokit.Queryer) dom.LedgerRepo { return led })
	fx := newFixture(t, map[period.Month]int{jan: 1, mar: 1}, WithLedger(nopDB{}, binder), WithEvents(sink))

	res, err := fx.svc.Process(context.Background(), "Rajarhat")
	require.NoError(t, err)

	want := []dom.Stage{dom.StageQuerying, dom.StageCompositing, dom.StageFetchingFrames, dom.StageEncoding, dom.StageDone}
	assert.Equal(t, want, led.stages(imagery.NDVI))
	assert.Equal(t, want, led.stages(imagery.NDWI))

	require.Len(t, sink.evs, 6)
	assert.Equal(t, "2025-01", sink.evs[0].Month)
	assert.True(t, sink.evs[0].OK)
	assert.False(t, sink.evs[1].OK)
	assert.Equal(t, "no_data", sink.evs[1].Reason)
	assert.Equal(t, res.RunID, sink.evs[5].RunID)
	assert.Equal(t, imagery.NDWI, sink.evs[5].Index)

	// falls back to the ledger once the cache forgets the run
	fx.svc.recent.Flush()
	got, err := fx.svc.Run(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, got.Indices, 2)
	assert.Equal(t, "Rajarhat", got.Locality)
	assert.Equal(t, dom.StageDone, got.Stage())
}

func TestProcess_LedgerErrorsAreNotFatal(t *testing.T) {
	led := &fakeLedger{err: perr.Unavailablef("pg down")}
	binder := repokit.BindFunc[dom.LedgerRepo](func(repokit.Queryer) dom.LedgerRepo { return led })
	fx := newFixture(t, map[period.Month]int{feb: 2}, WithLedger(nopDB{}, binder))

	_, err := fx.svc.Process(context.Background(), "Rajarhat")
	require.NoError(t, err)
}

func TestRun_Lookup(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.svc.Run(context.Background(), "not-a-uuid")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	_, err = fx.svc.Run(context.Background(), "6f1c1f9e-3c39-4a43-9d5e-0c6b4f1f2f10")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))

	_, ok := fx.svc.Latest("Rajarhat")
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	fx := newFixture(t, map[period.Month]int{jan: 1, mar: 1}, WithMetrics(m))
	_, err = fx.svc.Process(context.Background(), "Rajarhat")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("done")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesTotal.WithLabelValues("NDVI", "fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesTotal.WithLabelValues("NDWI", "skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsInFlight))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordRun("done")
		nilMetrics.RunStarted()()
	})
}

func TestOutputPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "Rajarhat_gifs", "NDVI_spatial.gif"), OutputPath("out", "Rajarhat", imagery.NDVI))
	assert.Equal(t, filepath.Join("out", "a_b_gifs", "NDWI_spatial.gif"), OutputPath("out", "a/b", imagery.NDWI))
	assert.Equal(t, filepath.Join("out", "__gifs", "NDWI_spatial.gif"), OutputPath("out", "..", imagery.NDWI))
	assert.Equal(t, "/static/outputs/New%20Town_gifs/NDVI_spatial.gif", OutputURL("/static/outputs", "New Town", imagery.NDVI))
}

func TestNew_PanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { New(nil, &locality.Store{}, DefaultConfig()) })
	assert.Panics(t, func() { New(&imagerytest.Fake{}, nil, DefaultConfig()) })
}
