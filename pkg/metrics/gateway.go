package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ims_gateway"

// Gateway groups the collectors observed across the aggregation pipeline.
// A nil *Gateway is valid and records nothing.
type Gateway struct {
	upstreamDuration *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	staleDiscards    *prometheus.CounterVec
	viewLoads        *prometheus.CounterVec
	mountedViews     prometheus.Gauge
	logouts          *prometheus.CounterVec
}

// NewGateway registers the gateway metrics on the provided registerer.
func NewGateway(reg prometheus.Registerer) *Gateway {
	if reg == nil {
		return &Gateway{}
	}
	g := &Gateway{
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests issued to the inventory services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "method"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests issued to the inventory services by outcome.",
		}, []string{"kind", "method", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_cache_lookups_total",
			Help:      "Collection cache lookups by result.",
		}, []string{"kind", "result"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_cache_stale_discards_total",
			Help:      "Fetch results dropped because their view was torn down.",
		}, []string{"kind"}),
		viewLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_loads_total",
			Help:      "View pipeline executions by outcome.",
		}, []string{"view", "outcome"}),
		mountedViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mounted_views",
			Help:      "Views currently mounted across all sessions.",
		}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_logouts_total",
			Help:      "Session teardowns by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		g.upstreamDuration,
		g.upstreamRequests,
		g.cacheLookups,
		g.staleDiscards,
		g.viewLoads,
		g.mountedViews,
		g.logouts,
	)
	return g
}

// ObserveUpstream records one upstream call.
func (g *Gateway) ObserveUpstream(kind, method, outcome string, duration time.Duration) {
	if g == nil || g.upstreamDuration == nil {
		return
	}
	kind = normalizeLabel(kind)
	method = normalizeLabel(method)
	g.upstreamDuration.WithLabelValues(kind, method).Observe(duration.Seconds())
	g.upstreamRequests.WithLabelValues(kind, method, normalizeLabel(outcome)).Inc()
}

func (g *Gateway) CacheHit(kind string) {
	if g == nil || g.cacheLookups == nil {
		return
	}
	g.cacheLookups.WithLabelValues(normalizeLabel(kind), "hit").Inc()
}

func (g *Gateway) CacheMiss(kind string) {
	if g == nil || g.cacheLookups == nil {
		return
	}
	g.cacheLookups.WithLabelValues(normalizeLabel(kind), "miss").Inc()
}

func (g *Gateway) StaleDiscard(kind string) {
	if g == nil || g.staleDiscards == nil {
		return
	}
	g.staleDiscards.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ViewLoaded counts a pipeline run; outcome is "ok", "degraded" or "error".
func (g *Gateway) ViewLoaded(view, outcome string) {
	if g == nil || g.viewLoads == nil {
		return
	}
	g.viewLoads.WithLabelValues(normalizeLabel(view), normalizeLabel(outcome)).Inc()
}

func (g *Gateway) ViewMounted() {
	if g == nil || g.mountedViews == nil {
		return
	}
	g.mountedViews.Inc()
}

func (g *Gateway) ViewUnmounted() {
	if g == nil || g.mountedViews == nil {
		return
	}
	g.mountedViews.Dec()
}

func (g *Gateway) Logout(reason string) {
	if g == nil || g.logouts == nil {
		return
	}
	g.logouts.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
