// Package earthengine implements imagery.Client over the Earth Engine REST API
package earthengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"

	"github.com/paulmach/orb"
	ee "google.golang.org/api/earthengine/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// cloudProperty is the per-image metadata the cloud ceiling filters on
const cloudProperty = "CLOUDY_PIXEL_PERCENTAGE"

// mapVar is the argument name of the band-annotation function mapped over the collection
const mapVar = "_MAPPING_VAR_0_0"

// Config configures the adapter
type Config struct {
	// Project is the cloud project that owns the requests
	Project string
	// CredentialsFile is a service account key; empty uses application default credentials
	CredentialsFile string
	// Endpoint overrides the API base URL
	Endpoint string
	// Collection is the source image collection id
	Collection string
}

// Client talks to Earth Engine; safe for concurrent use
type Client struct {
	svc        *ee.Service
	parent     string
	collection string
}

// New builds a client; extra options are appended after the ones derived from cfg
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, errors.New("earthengine: project is required")
	}
	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		all = append(all, option.WithEndpoint(cfg.Endpoint))
	}
	all = append(all, opts...)

	svc, err := ee.NewService(ctx, all...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "earthengine: create service")
	}
	coll := cfg.Collection
	if coll == "" {
		coll = imagery.DefaultCollection
	}
	return &Client{svc: svc, parent: "projects/" + cfg.Project, collection: coll}, nil
}

// Query builds the filtered, index-annotated collection and checks it is reachable
// with a single size computation
func (c *Client) Query(ctx context.Context, q imagery.Query) (imagery.Collection, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	g := c.filtered(q)
	coll := &collection{c: c, g: g, window: q.Window}

	n, err := coll.Count(ctx)
	if err != nil {
		return nil, err
	}
	logger.C(ctx).Debug().Str("component", "earthengine").Str("collection", c.collection).
		Str("window", q.Window.String()).Int("images", n).Msg("collection queried")
	return coll, nil
}

// filtered is load -> filter(date, bounds, cloud) -> map(add NDVI, NDWI)
func (c *Client) filtered(q imagery.Query) graph {
	load := invoke("ImageCollection.load", map[string]node{"id": constant(c.collection)})

	filter := invoke("Filter.and", map[string]node{"filters": array(
		dateFilter(q.Window.Start, q.Window.End.AddDate(0, 0, 1)),
		invoke("Filter.intersects", map[string]node{
			"leftField":  constant(".all"),
			"rightValue": geometry(q.Boundary),
		}),
		invoke("Filter.lessThan", map[string]node{
			"leftField":  constant(cloudProperty),
			"rightValue": constant(q.MaxCloud),
		}),
	)})

	filteredColl := invoke("Collection.filter", map[string]node{"collection": load, "filter": filter})

	// body of the mapped function: image.addBands(nd(a,b).rename(idx)) for each index
	body := argRef(mapVar)
	for _, idx := range imagery.Indices {
		p := imagery.MustProfile(idx)
		nd := invoke("Image.normalizedDifference", map[string]node{
			"input":     argRef(mapVar),
			"bandNames": strList(p.Bands[0], p.Bands[1]),
		})
		renamed := invoke("Image.rename", map[string]node{"input": nd, "names": strList(string(idx))})
		body = invoke("Image.addBands", map[string]node{"dstImg": body, "srcImg": renamed})
	}

	mapped := invoke("Collection.map", map[string]node{
		"collection": filteredColl,
		"baseAlgorithm": {FunctionDefinitionValue: &ee.FunctionDefinition{
			ArgumentNames: []string{mapVar},
			Body:          "annotate",
		}},
	})
	return graph{root: mapped, defs: map[string]node{"annotate": body}}
}

func dateFilter(from, to time.Time) node {
	return invoke("Filter.dateRangeContains", map[string]node{
		"leftValue": invoke("DateRange", map[string]node{
			"start": date(from.UTC().Format(time.RFC3339)),
			"end":   date(to.UTC().Format(time.RFC3339)),
		}),
		"rightField": constant("system:time_start"),
	})
}

// compute evaluates g and returns the decoded JSON result
func (c *Client) compute(ctx context.Context, g graph) (any, error) {
	resp, err := c.svc.Projects.Value.Compute(c.parent, &ee.ComputeValueRequest{Expression: g.expression()}).
		Context(ctx).Do()
	if err != nil {
		return nil, upstream(err, "compute value")
	}
	return resp.Result, nil
}

// thumbnail registers a rendered thumbnail and returns its pixel URL
func (c *Client) thumbnail(ctx context.Context, g graph) (string, error) {
	th, err := c.svc.Projects.Thumbnails.Create(c.parent, &ee.Thumbnail{
		Expression: g.expression(),
		FileFormat: "PNG",
	}).Context(ctx).Do()
	if err != nil {
		return "", upstream(err, "create thumbnail")
	}
	if th.Name == "" {
		return "", perr.Unavailablef("earthengine: create thumbnail: empty name")
	}
	return strings.TrimSuffix(c.svc.BasePath, "/") + "/v1/" + th.Name + ":getPixels", nil
}

// upstream maps transport and API failures onto the unavailable code
func upstream(err error, op string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "earthengine: %s: %d %s", op, gerr.Code, msg)
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "earthengine: %s", op)
}

type collection struct {
	c      *Client
	g      graph
	window period.Window
}

func (col *collection) Month(m period.Month) imagery.Collection {
	from, to := col.window.Clip(m)
	root := invoke("Collection.filter", map[string]node{
		"collection": col.g.root,
		"filter":     dateFilter(from, to),
	})
	return &collection{c: col.c, g: col.g.with(root), window: col.window}
}

func (col *collection) Count(ctx context.Context) (int, error) {
	res, err := col.c.compute(ctx, col.g.with(invoke("Collection.size", map[string]node{"collection": col.g.root})))
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case float64:
		return int(v), nil
	case nil:
		return 0, nil
	}
	return 0, perr.Unavailablef("earthengine: unexpected size result %T", res)
}

func (col *collection) Mean(idx imagery.Index) imagery.Image {
	mean := invoke("reduce.mean", map[string]node{"collection": col.g.root})
	sel := invoke("Image.select", map[string]node{
		"input":         mean,
		"bandSelectors": strList(string(idx)),
	})
	return &img{c: col.c, g: col.g.with(sel), bands: []string{string(idx)}}
}

type img struct {
	c     *Client
	g     graph
	bands []string
}

func (i *img) Bands() []string { return i.bands }

// Thumbnail clips to the boundary, scales to the dimension, then colourizes
func (i *img) Thumbnail(ctx context.Context, vis imagery.Visualization, boundary orb.Polygon) (string, error) {
	if err := vis.Validate(); err != nil {
		return "", err
	}
	geom := geometry(boundary)
	src := i.g.root
	if vis.Mask {
		src = invoke("Image.selfMask", map[string]node{"image": invoke("Image.gte", map[string]node{
			"image1": src,
			"image2": invoke("Image.constant", map[string]node{"value": constant(vis.Threshold)}),
		})})
	}
	clipped := invoke("Image.clipToBoundsAndScale", map[string]node{
		"input":        invoke("Image.clip", map[string]node{"input": src, "geometry": geom}),
		"geometry":     geom,
		"maxDimension": constant(vis.Dimension),
	})
	visual := invoke("Image.visualize", map[string]node{
		"image":   clipped,
		"bands":   strList(vis.Band),
		"min":     constant(vis.Min),
		"max":     constant(vis.Max),
		"palette": strList(vis.Palette...),
	})
	url, err := i.c.thumbnail(ctx, i.g.with(visual))
	if err != nil {
		return "", err
	}
	return url, nil
}

var _ imagery.Client = (*Client)(nil)
