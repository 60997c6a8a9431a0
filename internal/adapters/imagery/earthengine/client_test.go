package earthengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"landpulse/internal/core/composite"
	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var boundary = orb.Polygon{{{88.3, 22.5}, {88.5, 22.5}, {88.5, 22.7}, {88.3, 22.7}, {88.3, 22.5}}}

func ref(key string) node { return node{ValueReference: key} }

// scan collects function names and string constants from a decoded request body
func scan(v any, fns map[string]int, consts map[string]bool) {
	switch x := v.(type) {
	case map[string]any:
		if name, ok := x["functionName"].(string); ok {
			fns[name]++
		}
		if s, ok := x["constantValue"].(string); ok {
			consts[s] = true
		}
		for _, child := range x {
			scan(child, fns, consts)
		}
	case []any:
		for _, child := range x {
			scan(child, fns, consts)
		}
	}
}

type fakeEE struct {
	mu       sync.Mutex
	computes []map[string]int
	thumbs   []map[string]any
	status   int
	// a compute carrying every date of one group answers a size of zero
	empty [][]string
}

func (f *fakeEE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks permission","status":"PERMISSION_DENIED"}}`))
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fns, consts := map[string]int{}, map[string]bool{}
	scan(body, fns, consts)

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/projects/demo/value:compute":
		f.computes = append(f.computes, fns)
		size := 3
		for _, group := range f.empty {
			all := true
			for _, d := range group {
				all = all && consts[d]
			}
			if all {
				size = 0
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": size})
	case "/v1/projects/demo/thumbnails":
		f.thumbs = append(f.thumbs, body)
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "projects/demo/thumbnails/t" + string(rune('0'+len(f.thumbs)))})
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{Project: "demo", Endpoint: srv.URL + "/"}, option.WithoutAuthentication())
	require.NoError(t, err)
	return c, srv
}

func query() imagery.Query {
	return imagery.Query{Boundary: boundary, Window: period.DefaultWindow, MaxCloud: 20}
}

func TestQuery_BuildsFilteredAnnotatedCollection(t *testing.T) {
	fake := &fakeEE{}
	c, _ := newClient(t, fake)

	coll, err := c.Query(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, coll)

	require.Len(t, fake.computes, 1, "query validates with exactly one size call")
	fns := fake.computes[0]
	for _, fn := range []string{
		"ImageCollection.load", "Collection.filter", "Filter.and", "Filter.dateRangeContains",
		"Filter.intersects", "Filter.lessThan", "GeometryConstructors.Polygon", "Collection.map",
		"Image.addBands", "Collection.size",
	} {
		assert.Positive(t, fns[fn], "missing %s", fn)
	}
	assert.Equal(t, 2, fns["Image.normalizedDifference"], "one band per index")
	assert.Equal(t, 2, fns["Image.rename"])
}

func TestCollection_MonthCountAndMean(t *testing.T) {
	fake := &fakeEE{empty: [][]string{{"2025-02-01T00:00:00Z", "2025-03-01T00:00:00Z"}}}
	c, _ := newClient(t, fake)

	coll, err := c.Query(context.Background(), query())
	require.NoError(t, err)

	comps, err := composite.Build(context.Background(), coll, imagery.NDVI, period.DefaultWindow)
	require.NoError(t, err)
	require.Len(t, comps, 3)
	assert.True(t, comps[0].Available())
	assert.False(t, comps[1].Available(), "february answers zero images")
	assert.True(t, comps[2].Available())

	img, ok := comps[0].Image()
	require.True(t, ok)
	assert.Equal(t, []string{"NDVI"}, img.Bands())
}

func TestImage_ThumbnailPaletteAndMask(t *testing.T) {
	fake := &fakeEE{}
	c, srv := newClient(t, fake)

	coll, err := c.Query(context.Background(), query())
	require.NoError(t, err)
	img := coll.Month(period.Month{Year: 2025, Month: time.January}).Mean(imagery.NDWI)

	p := imagery.MustProfile(imagery.NDWI)
	url, err := img.Thumbnail(context.Background(), p.Visualization(imagery.ModePalette, 1024), boundary)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v1/projects/demo/thumbnails/t1:getPixels", url)

	_, err = img.Thumbnail(context.Background(), p.Visualization(imagery.ModeMask, 512), boundary)
	require.NoError(t, err)

	require.Len(t, fake.thumbs, 2)
	assert.Equal(t, "PNG", fake.thumbs[0]["fileFormat"])

	fns, consts := map[string]int{}, map[string]bool{}
	scan(fake.thumbs[0], fns, consts)
	for _, fn := range []string{"reduce.mean", "Image.select", "Image.clip", "Image.clipToBoundsAndScale", "Image.visualize"} {
		assert.Positive(t, fns[fn], "missing %s", fn)
	}
	assert.Zero(t, fns["Image.selfMask"])
	assert.True(t, consts["1e90ff"], "palette colour sent")

	fns, consts = map[string]int{}, map[string]bool{}
	scan(fake.thumbs[1], fns, consts)
	assert.Positive(t, fns["Image.gte"])
	assert.Positive(t, fns["Image.selfMask"])
	assert.True(t, consts["0000FF"], "mask colour sent")
}

func TestUpstreamErrorsAreUnavailable(t *testing.T) {
	c, _ := newClient(t, &fakeEE{status: http.StatusForbidden})

	_, err := c.Query(context.Background(), query())
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.True(t, strings.Contains(err.Error(), "403"), err.Error())
}

func TestQuery_InvalidInput(t *testing.T) {
	fake := &fakeEE{}
	c, _ := newClient(t, fake)

	q := query()
	q.MaxCloud = 0
	_, err := c.Query(context.Background(), q)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	assert.Empty(t, fake.computes, "nothing sent for an invalid query")
}

func TestNew_RequiresProject(t *testing.T) {
	_, err := New(context.Background(), Config{}, option.WithoutAuthentication())
	assert.Error(t, err)
}

func TestExpression_RootAndDefs(t *testing.T) {
	g := graph{root: constant(1), defs: map[string]node{"annotate": argRef(mapVar)}}
	e := g.expression()
	assert.Equal(t, "0", e.Result)
	assert.Contains(t, e.Values, "annotate")
	assert.Equal(t, 1, e.Values["0"].ConstantValue)

	h := g.with(ref("annotate"))
	assert.Equal(t, "annotate", h.expression().Values["0"].ValueReference)
}
