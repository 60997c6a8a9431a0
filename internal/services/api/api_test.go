package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"landpulse/internal/core/imagery/imagerytest"
	"landpulse/internal/core/locality"
	"landpulse/internal/core/period"
	"landpulse/internal/modkit/module"
	"landpulse/internal/platform/config"
	phttp "landpulse/internal/platform/net/http"
	"landpulse/internal/platform/testkit"
	psvc "landpulse/internal/services/pipeline/service"

	"github.com/go-chi/chi/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geojson = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"NAME_3":"Rajarhat"},
  "geometry":{"type":"Polygon","coordinates":[[[88.4,22.5],[88.5,22.5],[88.5,22.6],[88.4,22.6],[88.4,22.5]]]}},
 {"type":"Feature","properties":{"NAME_3":"Bidhannagar"},
  "geometry":{"type":"Polygon","coordinates":[[[88.3,22.5],[88.5,22.5],[88.5,22.7],[88.3,22.7],[88.3,22.5]]]}},
 {"type":"Feature","properties":{"NAME_3":"Salt Lake, Sector V"},
  "geometry":{"type":"Polygon","coordinates":[[[88.42,22.56],[88.44,22.56],[88.44,22.58],[88.42,22.58],[88.42,22.56]]]}}]}`

var (
	jan = period.Month{Year: 2025, Month: time.January}
	mar = period.Month{Year: 2025, Month: time.March}
)

type harness struct {
	h    http.Handler
	fake *imagerytest.Fake
}

func newHarness(t *testing.T, counts map[period.Month]int) *harness {
	t.Helper()
	t.Cleanup(module.Reset)
	t.Setenv("LANDPULSE_OUTPUT_DIR", t.TempDir())

	locs, err := locality.Parse([]byte(geojson))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, `=~^https://thumbs\.test/`, httpmock.NewBytesResponder(200, buf.Bytes()))

	fake := &imagerytest.Fake{BaseURL: "https://thumbs.test/v1", Counts: counts}
	mux := chi.NewRouter()
	err = Mount(context.Background(), phttp.AdaptChi(mux), Options{
		Config:     config.New(),
		Imagery:    fake,
		Localities: locs,
		Pipeline:   []psvc.Option{psvc.WithHTTPClient(&http.Client{Transport: mt})},
	})
	require.NoError(t, err)
	return &harness{h: mux, fake: fake}
}

func (hs *harness) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

func flatError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1, "flat error body has only the error key")
	return body["error"].(string)
}

func TestLandingAndLookup(t *testing.T) {
	hs := newHarness(t, nil)

	rec := hs.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, "Bidhannagar"), strings.Index(body, "Rajarhat"), "names are sorted")

	rec = hs.do(t, http.MethodGet, "/get_locality_geojson?name=Rajarhat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feat map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feat))
	assert.Equal(t, "Feature", feat["type"])

	rec = hs.do(t, http.MethodGet, "/get_locality_geojson?name=Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, flatError(t, rec), "Atlantis")

	rec = hs.do(t, http.MethodGet, "/get_locality_geojson", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(t, http.MethodGet, "/api/v1/localities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			Count      int      `json:"count"`
			Localities []string `json:"localities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 3, env.Data.Count)
	assert.Equal(t, []string{"Bidhannagar", "Rajarhat", "Salt Lake, Sector V"}, env.Data.Localities)
}

func TestProcess_Success(t *testing.T) {
	hs := newHarness(t, map[period.Month]int{jan: 2, mar: 1})

	rec := hs.do(t, http.MethodPost, "/process", url.Values{"locality": {"Rajarhat"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Success     bool   `json:"success"`
		Locality    string `json:"locality"`
		RedirectURL string `json:"redirect_url"`
		NDVIGif     string `json:"ndvi_gif"`
		NDWIGif     string `json:"ndwi_gif"`
		RunID       string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Rajarhat", out.Locality)
	assert.Equal(t, "/results/Rajarhat", out.RedirectURL)
	assert.Equal(t, "/static/outputs/Rajarhat_gifs/NDVI_spatial.gif", out.NDVIGif)
	assert.Equal(t, "/static/outputs/Rajarhat_gifs/NDWI_spatial.gif", out.NDWIGif)
	require.NotEmpty(t, out.RunID)

	rec = hs.do(t, http.MethodGet, out.NDVIGif, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("GIF89a")))

	rec = hs.do(t, http.MethodGet, "/static/outputs/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no directory listing")

	rec = hs.do(t, http.MethodGet, out.RedirectURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.MustContain(t, rec.Body.String(), out.NDWIGif)
	testkit.MustContain(t, rec.Body.String(), "skipped 2025-02")

	rec = hs.do(t, http.MethodGet, "/api/v1/runs/"+out.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run struct {
		Data struct {
			ID    string `json:"id"`
			Stage string `json:"stage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, out.RunID, run.Data.ID)
	assert.Equal(t, "DONE", run.Data.Stage)

	rec = hs.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `landpulse_pipeline_runs_total{outcome="done"} 1`)
}

func TestProcess_EscapedLocalityName(t *testing.T) {
	hs := newHarness(t, map[period.Month]int{jan: 1})
	const name = "Salt Lake, Sector V"

	rec := hs.do(t, http.MethodPost, "/process", url.Values{"locality": {name}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		RedirectURL string `json:"redirect_url"`
		NDVIGif     string `json:"ndvi_gif"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "/results/Salt%20Lake%2C%20Sector%20V", out.RedirectURL)

	rec = hs.do(t, http.MethodGet, out.RedirectURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.MustContain(t, rec.Body.String(), out.NDVIGif)

	rec = hs.do(t, http.MethodGet, out.NDVIGif, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = hs.do(t, http.MethodGet, "/api/v1/localities/"+url.PathEscape(name), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcess_Errors(t *testing.T) {
	hs := newHarness(t, nil)

	rec := hs.do(t, http.MethodPost, "/process", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing locality name", flatError(t, rec))

	rec = hs.do(t, http.MethodPost, "/process", url.Values{"locality": {"Atlantis"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	flatError(t, rec)

	rec = hs.do(t, http.MethodPost, "/process", url.Values{"locality": {"Rajarhat"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, flatError(t, rec), "no valid image for NDVI")

	rec = hs.do(t, http.MethodGet, "/results/Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_RateLimited(t *testing.T) {
	t.Setenv("LANDPULSE_API_RATE_RPS", "0.001")
	t.Setenv("LANDPULSE_API_RATE_BURST", "1")
	hs := newHarness(t, nil)

	first := hs.do(t, http.MethodPost, "/process", url.Values{"locality": {"Atlantis"}})
	assert.Equal(t, http.StatusNotFound, first.Code)

	second := hs.do(t, http.MethodPost, "/process", url.Values{"locality": {"Atlantis"}})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	flatError(t, second)

	// pages outside /process are not limited
	assert.Equal(t, http.StatusOK, hs.do(t, http.MethodGet, "/", nil).Code)
}

func TestMetaAndHeartbeat(t *testing.T) {
	hs := newHarness(t, nil)

	assert.Equal(t, http.StatusOK, hs.do(t, http.MethodGet, "/health", nil).Code)

	rec := hs.do(t, http.MethodGet, "/api/v1/meta/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			Status     string `json:"status"`
			Localities int    `json:"localities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "ok", env.Data.Status)
	assert.Equal(t, 3, env.Data.Localities)

	rec = hs.do(t, http.MethodGet, "/api/v1/meta/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, no-transform, must-revalidate, private, max-age=0", rec.Header().Get("Cache-Control"))
}
