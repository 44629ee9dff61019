package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal  *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	searchFusedHits      *prometheus.HistogramVec
	branchDispatchTotal  *prometheus.CounterVec
	branchDispatchErrors *prometheus.CounterVec
	branchDuration       *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hybridd",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridd",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by retrieval and ranking method.",
		},
		[]string{"service", "retrieval", "ranking", "status"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridd",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "retrieval"},
	)
	searchFusedHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridd",
			Subsystem: "search",
			Name:      "result_hits",
			Help:      "Distribution of returned hits per search request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "retrieval"},
	)
	branchDispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridd",
			Subsystem: "backend",
			Name:      "dispatch_total",
			Help:      "Total branch dispatches to the retrieval backend.",
		},
		[]string{"service", "branch"},
	)
	branchDispatchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridd",
			Subsystem: "backend",
			Name:      "dispatch_errors_total",
			Help:      "Total failed branch dispatches by error kind.",
		},
		[]string{"service", "branch", "kind"},
	)
	branchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridd",
			Subsystem: "backend",
			Name:      "dispatch_duration_seconds",
			Help:      "Branch dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "branch"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchDuration,
		searchFusedHits,
		branchDispatchTotal,
		branchDispatchErrors,
		branchDuration,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchRequestsTotal:  searchRequestsTotal,
		searchDuration:       searchDuration,
		searchFusedHits:      searchFusedHits,
		branchDispatchTotal:  branchDispatchTotal,
		branchDispatchErrors: branchDispatchErrors,
		branchDuration:       branchDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, retrieval, ranking, status string, hitCount int, duration time.Duration) {
	if retrieval == "" {
		retrieval = "unknown"
	}
	if ranking == "" {
		ranking = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.searchRequestsTotal.WithLabelValues(service, retrieval, ranking, status).Inc()
	m.searchDuration.WithLabelValues(service, retrieval).Observe(duration.Seconds())
	if status == "ok" {
		m.searchFusedHits.WithLabelValues(service, retrieval).Observe(float64(hitCount))
	}
}

func (m *HTTPServerMetrics) RecordBranchDispatch(service, branch string, duration time.Duration, errKind string) {
	if branch == "" {
		branch = "unknown"
	}
	m.branchDispatchTotal.WithLabelValues(service, branch).Inc()
	m.branchDuration.WithLabelValues(service, branch).Observe(duration.Seconds())
	if errKind != "" {
		m.branchDispatchErrors.WithLabelValues(service, branch, errKind).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
