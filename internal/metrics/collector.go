// Package metrics exposes Prometheus instrumentation for backend calls,
// viewers and rendering.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"asset-studio/internal/modality"
)

// Collector records process metrics. It satisfies backend.RequestObserver,
// viewer.Observer and render.FallbackObserver.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	viewersLive     prometheus.Gauge
	framesRendered  prometheus.Counter
	renderFallbacks *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the collector's metrics with reg, or with the
// default registry when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	return &Collector{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total number of backend requests",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),
		viewersLive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_live",
			Help:      "Number of mounted 3D viewers",
		}),
		framesRendered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_frames_rendered_total",
			Help:      "Total number of viewer frames rendered",
		}),
		renderFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_fallbacks_total",
				Help:      "Payloads shown as raw text because they could not be rendered",
			},
			[]string{"modality"},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// ObserveRequest records one backend call.
func (c *Collector) ObserveRequest(endpoint, status string, d time.Duration) {
	c.requestsTotal.WithLabelValues(endpoint, status).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ViewersLive sets the live viewer gauge.
func (c *Collector) ViewersLive(n int) { c.viewersLive.Set(float64(n)) }

// FrameRendered counts one viewer frame.
func (c *Collector) FrameRendered() { c.framesRendered.Inc() }

// RenderFallback counts a payload that degraded to raw text.
func (c *Collector) RenderFallback(m modality.Modality) {
	label := string(m)
	if !m.Valid() {
		label = "unknown"
	}
	c.renderFallbacks.WithLabelValues(label).Inc()
	c.logger.Debug("render fallback", zap.String("modality", label))
}
