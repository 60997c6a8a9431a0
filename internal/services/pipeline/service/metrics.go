package service

import (
	"time"

	"landpulse/internal/core/frames"
	"landpulse/internal/core/imagery"
	dom "landpulse/internal/services/pipeline/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for pipeline runs
// a nil *Metrics records nothing
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	stagesTotal      *prometheus.CounterVec
	framesTotal      *prometheus.CounterVec
	downloadDuration *prometheus.HistogramVec
	encodeDuration   *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
}

// NewMetrics creates and registers the pipeline metrics
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landpulse_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"}, // outcome: done or an error code label
	)

	m.stagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landpulse_pipeline_stage_transitions_total",
			Help: "Total number of stage transitions per index",
		},
		[]string{"index", "stage"},
	)

	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landpulse_frames_total",
			Help: "Total number of monthly frames by result",
		},
		[]string{"index", "result"}, // result: fetched, skipped, failed
	)

	m.downloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "landpulse_frame_fetch_duration_seconds",
			Help: "Time taken to render and download one thumbnail",
			// 100ms to ~51s, the download timeout is 45s
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"index"},
	)

	m.encodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landpulse_gif_encode_duration_seconds",
			Help:    "Time taken to encode and write one animation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"index"},
	)

	m.runsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "landpulse_pipeline_runs_in_flight",
		Help: "Number of pipeline runs currently executing",
	})
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.stagesTotal.Describe(ch)
	m.framesTotal.Describe(ch)
	m.downloadDuration.Describe(ch)
	m.encodeDuration.Describe(ch)
	m.runsInFlight.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.stagesTotal.Collect(ch)
	m.framesTotal.Collect(ch)
	m.downloadDuration.Collect(ch)
	m.encodeDuration.Collect(ch)
	m.runsInFlight.Collect(ch)
}

// RecordRun records a finished run
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records a stage transition
func (m *Metrics) RecordStage(idx imagery.Index, stage dom.Stage) {
	if m == nil {
		return
	}
	m.stagesTotal.WithLabelValues(idx.String(), string(stage)).Inc()
}

// RecordFrame records one per month result; only real fetch attempts are timed
func (m *Metrics) RecordFrame(idx imagery.Index, r frames.FrameResult) {
	if m == nil {
		return
	}
	switch {
	case r.OK():
		m.framesTotal.WithLabelValues(idx.String(), "fetched").Inc()
	case r.Skipped():
		m.framesTotal.WithLabelValues(idx.String(), "skipped").Inc()
		return
	default:
		m.framesTotal.WithLabelValues(idx.String(), "failed").Inc()
	}
	m.downloadDuration.WithLabelValues(idx.String()).Observe(r.Elapsed.Seconds())
}

// RecordEncode records the duration of one animation encode
func (m *Metrics) RecordEncode(idx imagery.Index, d time.Duration) {
	if m == nil {
		return
	}
	m.encodeDuration.WithLabelValues(idx.String()).Observe(d.Seconds())
}

// RunStarted increments the in flight gauge and returns its decrement
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.runsInFlight.Inc()
	return m.runsInFlight.Dec
}
