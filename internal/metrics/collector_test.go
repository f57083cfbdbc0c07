package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"asset-studio/internal/modality"
)

func newTestCollector() *Collector {
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

func TestCollector_ObserveRequest(t *testing.T) {
	c := newTestCollector()
	c.ObserveRequest("upload", "200", 120*time.Millisecond)
	c.ObserveRequest("upload", "200", 80*time.Millisecond)
	c.ObserveRequest("augment", "transport_error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("upload", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("augment", "transport_error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.requestDuration))
}

func TestCollector_Viewers(t *testing.T) {
	c := newTestCollector()
	c.ViewersLive(3)
	c.ViewersLive(1)
	c.FrameRendered()
	c.FrameRendered()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.viewersLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesRendered))
}

func TestCollector_RenderFallback(t *testing.T) {
	c := newTestCollector()
	c.RenderFallback(modality.Mesh)
	c.RenderFallback(modality.Modality("video"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.renderFallbacks.WithLabelValues("mesh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.renderFallbacks.WithLabelValues("unknown")))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestCollector()
		newTestCollector()
	})
}
