// Package http provides the render endpoints: /process, the results page,
// the static artifact server and run lookups
package http

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"strings"

	"landpulse/internal/core/imagery"
	"landpulse/internal/modkit/httpkit"
	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"
	"landpulse/internal/platform/net/http/bind"
	pdom "landpulse/internal/services/pipeline/domain"
	psvc "landpulse/internal/services/pipeline/service"
)

// StaticPrefix is where rendered animations are served from
const StaticPrefix = "/static/outputs"

//go:embed templates/*.html
var templatesFS embed.FS

var resultsTmpl = template.Must(template.ParseFS(templatesFS, "templates/results.html"))

// Deps are the handler dependencies
type Deps struct {
	Runner    pdom.RunnerPort
	OutputDir string
	// Exists reports whether a locality is known
	Exists func(name string) bool
	// Limit wraps /process, typically a rate limiter
	Limit func(http.Handler) http.Handler
}

type handlers struct{ d Deps }

// Register mounts the run lookup; the caller owns the /runs prefix
func Register(r httpkit.Router, d Deps) {
	h := &handlers{d: d}
	httpkit.Get(r, "/{id}", h.run)
}

// RegisterPages mounts /process, /results/{locality} and the static outputs
func RegisterPages(r httpkit.Router, d Deps) {
	h := &handlers{d: d}
	r.Group(func(g httpkit.Router) {
		if d.Limit != nil {
			g.Use(d.Limit)
		}
		g.Post("/process", h.process)
	})
	r.Get("/results/{locality}", h.results)
	r.Handle(StaticPrefix+"/*", http.StripPrefix(StaticPrefix+"/", noListing(http.FileServer(http.Dir(d.OutputDir)))))
}

// ProcessInput is the /process form
type ProcessInput struct {
	Locality string `form:"locality" validate:"required,locname"`
}

// ProcessResponse is the /process success body
type ProcessResponse struct {
	Success     bool   `json:"success"      example:"true"`
	Locality    string `json:"locality"     example:"Rajarhat"`
	RedirectURL string `json:"redirect_url" example:"/results/Rajarhat"`
	NDVIGif     string `json:"ndvi_gif"     example:"/static/outputs/Rajarhat_gifs/NDVI_spatial.gif"`
	NDWIGif     string `json:"ndwi_gif"     example:"/static/outputs/Rajarhat_gifs/NDWI_spatial.gif"`
	RunID       string `json:"run_id"       example:"7b8f2f0c-5a0e-4d8e-9a51-1f4cc1a3c001"`
}

// swagger:route POST /process Render renderProcess
// @Summary Render the NDVI and NDWI animations of a locality
// @Tags Render
// @Accept x-www-form-urlencoded
// @Produce json
// @Param locality formData string true "Locality name"
// @Success 200 {object} ProcessResponse ok
// @Failure 400 {object} httpkit.FlatError "missing name"
// @Failure 404 {object} httpkit.FlatError "unknown locality"
// @Failure 429 {object} httpkit.FlatError "rate limited"
// @Failure 503 {object} httpkit.FlatError "imagery service failure or no frames"
// @Router /process [post]
func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	in, err := bind.ParseForm[ProcessInput](r)
	if err != nil {
		httpkit.WriteFlatError(w, err)
		return
	}
	res, err := h.d.Runner.Process(r.Context(), in.Locality)
	if err != nil {
		logger.C(r.Context()).Warn().Err(err).
			Str("locality", in.Locality).
			Str("run_id", res.RunID).
			Int("status", perr.HTTPStatus(err)).
			Msg("process failed")
		httpkit.WriteFlatError(w, err)
		return
	}
	httpkit.JSON(w, http.StatusOK, ProcessResponse{
		Success:     true,
		Locality:    res.Locality,
		RedirectURL: ResultsURL(res.Locality),
		NDVIGif:     psvc.OutputURL(StaticPrefix, res.Locality, imagery.NDVI),
		NDWIGif:     psvc.OutputURL(StaticPrefix, res.Locality, imagery.NDWI),
		RunID:       res.RunID,
	})
}

// ResultsURL is the results page of a locality
func ResultsURL(locality string) string { return "/results/" + url.PathEscape(locality) }

type panel struct {
	Index  string
	GIF    string
	Ready  bool
	Frames int
	Gaps   []string
}

type resultsView struct {
	Locality string
	RunID    string
	Stage    string
	Panels   []panel
}

func (h *handlers) results(w http.ResponseWriter, r *http.Request) {
	name := bind.Normalize(httpkit.URLParam(r, "locality"))
	if h.d.Exists != nil && !h.d.Exists(name) {
		http.Error(w, "unknown locality", http.StatusNotFound)
		return
	}

	view := resultsView{Locality: name}
	run, known := h.d.Runner.Latest(name)
	if known {
		view.RunID, view.Stage = run.ID, string(run.Stage())
	}
	for _, idx := range imagery.Indices {
		p := panel{Index: idx.String(), GIF: psvc.OutputURL(StaticPrefix, name, idx)}
		if _, err := os.Stat(psvc.OutputPath(h.d.OutputDir, name, idx)); err == nil {
			p.Ready = true
		}
		for _, ir := range run.Indices {
			if ir.Index == idx {
				p.Frames, p.Gaps = ir.Frames, ir.Skipped
			}
		}
		view.Panels = append(view.Panels, p)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultsTmpl.Execute(w, view); err != nil {
		logger.C(r.Context()).Error().Err(err).Msg("render results")
	}
}

// swagger:route GET /runs/{id} Runs runsGet
// @Summary Pipeline run by id
// @Tags Runs
// @Produce json
// @Param id path string true "Run id (uuid)"
// @Success 200 {object} object ok
// @Failure 404 {object} object "unknown run"
// @Router /runs/{id} [get]
func (h *handlers) run(r *http.Request) (any, error) {
	run, err := h.d.Runner.Run(r.Context(), httpkit.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return RunResponse{Run: run, Stage: run.Stage()}, nil
}

// RunResponse is a run with its summarized stage
type RunResponse struct {
	pdom.Run
	Stage pdom.Stage `json:"stage" example:"DONE"`
}

// noListing hides directory indexes
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
