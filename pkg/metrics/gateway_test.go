package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGatewayMetricsExportsUpstreamAndCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateway(reg)

	m.ObserveUpstream("recipe", "GET", "ok", 250*time.Millisecond)
	m.ObserveUpstream("recipe", "GET", "rejected", 10*time.Millisecond)
	m.CacheHit("recipe")
	m.CacheMiss("recipe")
	m.CacheMiss("recipe")
	m.ViewLoaded("recipes", "degraded")
	m.Logout("unauthorized")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ims_gateway_upstream_requests_total", "outcome", "rejected"); err != nil {
		t.Fatalf("fetch upstream: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejected=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ims_gateway_collection_cache_lookups_total", "result", "miss"); err != nil {
		t.Fatalf("fetch cache: %v", err)
	} else if got != 2 {
		t.Fatalf("expected miss=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ims_gateway_view_loads_total", "outcome", "degraded"); err != nil {
		t.Fatalf("fetch view loads: %v", err)
	} else if got != 1 {
		t.Fatalf("expected degraded=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "ims_gateway_upstream_request_duration_seconds", "kind", "recipe"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilGatewayIsSafe(t *testing.T) {
	var m *Gateway
	m.ObserveUpstream("", "", "", time.Second)
	m.CacheHit("x")
	m.ViewMounted()
	m.ViewUnmounted()
	m.Logout("explicit")

	unregistered := NewGateway(nil)
	unregistered.CacheMiss("x")
	unregistered.StaleDiscard("x")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
