// Package http provides the locality endpoints and the landing page
package http

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"landpulse/internal/modkit/httpkit"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"
	"landpulse/internal/platform/net/http/bind"
	str "landpulse/internal/platform/strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Directory is the read side of the locality store
type Directory interface {
	Names() []string
	Feature(name string) (json.RawMessage, error)
	Len() int
}

type handlers struct{ dir Directory }

// Register mounts the JSON API routes
func Register(r httpkit.Router, d Directory) {
	h := &handlers{dir: d}
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{name}", h.feature)
}

// RegisterPages mounts the landing page and the legacy GeoJSON lookup
func RegisterPages(r httpkit.Router, d Directory) {
	h := &handlers{dir: d}
	r.Get("/", h.index)
	r.Get("/get_locality_geojson", h.geojson)
}

// ListResponse is the sorted locality list
type ListResponse struct {
	Count      int      `json:"count"      example:"2"`
	Localities []string `json:"localities"`
}

// swagger:route GET /localities Localities localitiesList
// @Summary Sorted locality names
// @Tags Localities
// @Produce json
// @Success 200 type ListResponse ok
// @Router /localities [get]
func (h *handlers) list(_ *http.Request) (any, error) {
	names := str.IfEmpty(h.dir.Names(), []string{})
	return ListResponse{Count: len(names), Localities: names}, nil
}

// swagger:route GET /localities/{name} Localities localitiesFeature
// @Summary Raw GeoJSON feature of one locality
// @Tags Localities
// @Produce json
// @Param name path string true "Locality name"
// @Success 200 {object} object ok
// @Failure 404 {object} object "unknown locality"
// @Router /localities/{name} [get]
func (h *handlers) feature(r *http.Request) (any, error) {
	return h.dir.Feature(bind.Normalize(httpkit.URLParam(r, "name")))
}

type indexView struct {
	Localities []string
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, indexView{Localities: h.dir.Names()}); err != nil {
		logger.C(r.Context()).Error().Err(err).Msg("render index")
	}
}

func (h *handlers) geojson(w http.ResponseWriter, r *http.Request) {
	name := bind.Normalize(r.URL.Query().Get("name"))
	if name == "" {
		httpkit.WriteFlatError(w, perr.WithField(perr.Validationf("missing locality name"), "name"))
		return
	}
	feat, err := h.dir.Feature(name)
	if err != nil {
		httpkit.WriteFlatError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feat)
}
