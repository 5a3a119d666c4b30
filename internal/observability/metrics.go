// Package observability exposes Prometheus metrics for the herd engine and
// the HTTP API.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/herd-world/internal/herd"
)

// HerdCollector bundles Prometheus metrics for herd rebalancing and wander
// decisions. It implements herd.Recorder.
type HerdCollector struct {
	gatherer prometheus.Gatherer

	Rebalances        prometheus.Counter
	RebalanceDuration prometheus.Histogram

	Members  *prometheus.GaugeVec
	Clusters *prometheus.GaugeVec
	Noise    *prometheus.GaugeVec
	Largest  *prometheus.GaugeVec

	WanderDecisions *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewHerdCollector registers herd metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewHerdCollector(reg prometheus.Registerer) (*HerdCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rebalances, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "herd_rebalances_total",
		Help: "Number of full rebalance passes over all herds.",
	}), "herd_rebalances_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "herd_rebalance_duration_seconds",
		Help:    "Wall time of a full rebalance pass.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "herd_rebalance_duration_seconds")
	if err != nil {
		return nil, err
	}

	herdLabels := []string{"species", "dimension"}
	members, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herd_members",
		Help: "Members per herd after the last rebalance.",
	}, herdLabels), "herd_members")
	if err != nil {
		return nil, err
	}
	clusters, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herd_clusters",
		Help: "Clusters per herd after the last rebalance.",
	}, herdLabels), "herd_clusters")
	if err != nil {
		return nil, err
	}
	noise, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herd_noise",
		Help: "Members outside any cluster after the last rebalance.",
	}, herdLabels), "herd_noise")
	if err != nil {
		return nil, err
	}
	largest, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herd_largest_cluster",
		Help: "Size of each herd's largest cluster after the last rebalance.",
	}, herdLabels), "herd_largest_cluster")
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herd_wander_decisions_total",
		Help: "Wander queries answered, labeled by herd and decision.",
	}, []string{"species", "dimension", "decision"}), "herd_wander_decisions_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "HTTP API requests, labeled by route and status code.",
	}, []string{"route", "code"}), "api_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "HTTP API latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route"}), "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &HerdCollector{
		gatherer:          gatherer,
		Rebalances:        rebalances,
		RebalanceDuration: duration,
		Members:           members,
		Clusters:          clusters,
		Noise:             noise,
		Largest:           largest,
		WanderDecisions:   decisions,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
	}, nil
}

// ObserveRebalance updates the per-herd gauges.
func (c *HerdCollector) ObserveRebalance(s herd.RebalanceStats) {
	if c == nil {
		return
	}
	c.Members.WithLabelValues(s.Key.Species, s.Key.Dimension).Set(float64(s.Members))
	c.Clusters.WithLabelValues(s.Key.Species, s.Key.Dimension).Set(float64(s.Clusters))
	c.Noise.WithLabelValues(s.Key.Species, s.Key.Dimension).Set(float64(s.Noise))
	c.Largest.WithLabelValues(s.Key.Species, s.Key.Dimension).Set(float64(s.Largest))
}

// ObserveRebalanceAll counts a full pass and its duration.
func (c *HerdCollector) ObserveRebalanceAll(herds int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Rebalances.Inc()
	c.RebalanceDuration.Observe(elapsed.Seconds())
}

// ObserveWander counts one wander decision.
func (c *HerdCollector) ObserveWander(key herd.Key, d herd.Decision) {
	if c == nil {
		return
	}
	c.WanderDecisions.WithLabelValues(key.Species, key.Dimension, d.String()).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *HerdCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Instrument records request counts and durations for one API route.
func (c *HerdCollector) Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if c == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
