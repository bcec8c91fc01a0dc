package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
	"github.com/Orelexa/gardrob/internal/infrastructure/imageloader"
)

const namespace = "gardrob"

// Metrics owns the process's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	transforms        *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec

	loaderEvents   *prometheus.CounterVec
	loaderDuration prometheus.Histogram
	loaderActive   prometheus.Gauge
	loaderQueued   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"method", "route"}),

		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "calls_total",
			Help:      "Image transform calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Duration of image transform calls.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~64s
		}, []string{"op"}),

		loaderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image_loader",
			Name:      "events_total",
			Help:      "Image loader cache hits, deduplicated waits and fetch outcomes.",
		}, []string{"event"}),
		loaderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "image_loader",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of image prefetches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		loaderActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "image_loader",
			Name:      "active_fetches",
			Help:      "Image fetches currently running.",
		}),
		loaderQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "image_loader",
			Name:      "queued_fetches",
			Help:      "Image fetches waiting for a slot.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.transforms,
		m.transformDuration,
		m.loaderEvents,
		m.loaderDuration,
		m.loaderActive,
		m.loaderQueued,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoaderObserver adapts the metrics to imageloader events.
func (m *Metrics) LoaderObserver() imageloader.Observer {
	return loaderObserver{m}
}

type loaderObserver struct {
	m *Metrics
}

func (o loaderObserver) CacheHit() {
	o.m.loaderEvents.WithLabelValues("cache_hit").Inc()
}

func (o loaderObserver) Deduplicated() {
	o.m.loaderEvents.WithLabelValues("deduplicated").Inc()
}

func (o loaderObserver) FetchFinished(d time.Duration, err error) {
	outcome := "fetch_ok"
	if err != nil {
		outcome = "fetch_error"
	}
	o.m.loaderEvents.WithLabelValues(outcome).Inc()
	o.m.loaderDuration.Observe(d.Seconds())
}

func (o loaderObserver) QueueDepth(active, queued int) {
	o.m.loaderActive.Set(float64(active))
	o.m.loaderQueued.Set(float64(queued))
}

// InstrumentTransformer wraps t, recording each call's outcome and duration.
func (m *Metrics) InstrumentTransformer(t repositories.Transformer) repositories.Transformer {
	return &instrumentedTransformer{next: t, m: m}
}

type instrumentedTransformer struct {
	next repositories.Transformer
	m    *Metrics
}

func (t *instrumentedTransformer) ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error) {
	start := time.Now()
	ref, err := t.next.ApplyGarment(ctx, base, garment)
	t.m.observeTransform("apply_garment", start, err)
	return ref, err
}

func (t *instrumentedTransformer) VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error) {
	start := time.Now()
	ref, err := t.next.VaryPose(ctx, base, instruction)
	t.m.observeTransform("vary_pose", start, err)
	return ref, err
}

func (m *Metrics) observeTransform(op string, start time.Time, err error) {
	m.transforms.WithLabelValues(op, TransformOutcome(err)).Inc()
	m.transformDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// TransformOutcome labels a transform result: ok, validation, or the
// TransformError kind.
func TransformOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, services.ErrValidation) {
		return "validation"
	}
	var te *services.TransformError
	if errors.As(err, &te) {
		return string(te.Kind)
	}
	return "error"
}
