package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/pkg/router"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheusRecordsOutcomes(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))
	root := loaderTree(map[string]router.LoaderFunc{
		"ok":  value("fine"),
		"bad": failing(errors.New("db down")),
		"nf":  failing(router.NotFound()),
	})
	r := newRouter(t, root, router.WithMiddleware(m))

	navigate(t, r, "/ok")
	navigate(t, r, "/bad")
	navigate(t, r, "/nf")

	assert.Equal(t, 1.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("/ok", "success")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("/bad", "failure")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("/nf", "notFound")))
	assert.Equal(t, 0.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("/ok", "failure")))
	assert.Equal(t, uint64(1), metricHistogramCount(t, m.loadDuration.WithLabelValues("/bad")))
}

func TestPrometheusHandleDirect(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))
	lc := &router.LoadContext{MatchID: "/x"}

	_, err := m.Handle(context.Background(), lc, func(context.Context) (any, error) {
		return nil, router.Redirect("/login")
	})
	require.Error(t, err)
	assert.Equal(t, 1.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("unknown", "redirect")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = m.Handle(ctx, lc, func(ctx context.Context) (any, error) { return nil, ctx.Err() })
	assert.Equal(t, 1.0, metricCounterValue(t, m.loadsTotal.WithLabelValues("unknown", "canceled")))
}

func TestPrometheusObserve(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))
	root := loaderTree(map[string]router.LoaderFunc{
		"a":    value("a"),
		"b":    value("b"),
		"gone": failing(router.NotFound()),
	})
	r := newRouter(t, root, router.WithMiddleware(m), router.WithDefaultGcTime(0))
	stop := m.Observe(r)

	navigate(t, r, "/a")
	navigate(t, r, "/b")
	navigate(t, r, "/gone")

	assert.Equal(t, 2.0, metricCounterValue(t, m.navigationsTotal.WithLabelValues("200")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.navigationsTotal.WithLabelValues("404")))
	assert.GreaterOrEqual(t, metricCounterValue(t, m.evictionsTotal), 2.0)

	stop()
	navigate(t, r, "/a")
	assert.Equal(t, 2.0, metricCounterValue(t, m.navigationsTotal.WithLabelValues("200")))
}

func TestPrometheusSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		Prometheus(WithRegistry(prometheus.NewRegistry()))
		Prometheus(WithRegistry(prometheus.NewRegistry()))
	})
}
