package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PointsListTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_points_list_total",
		Help: "Total number of GET /points requests",
	})
	PointsCreateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_points_create_total",
		Help: "Total number of accepted public point submissions",
	})
	PointsDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_points_denied_total",
		Help: "Total number of rate-limited public submissions",
	})
	PointsInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_points_invalid_total",
		Help: "Total number of submissions rejected by validation",
	})
	SubmitOriginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pontos_submit_origin_total",
		Help: "Public submissions by GeoIP country code",
	}, []string{"country"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pontos_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	NominatimRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pontos_nominatim_requests_total",
		Help: "Total Nominatim REST requests",
	}, []string{"op"})
	NominatimFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pontos_nominatim_fail_total",
		Help: "Total Nominatim REST failures",
	}, []string{"op"})
	NominatimDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pontos_nominatim_duration_ms",
		Help:    "Nominatim REST call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"op"})
	ReverseCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_reverse_cache_hits_total",
		Help: "Total redis reverse-geocode cache hits",
	})
	ReverseCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_reverse_cache_misses_total",
		Help: "Total redis reverse-geocode cache misses",
	})
	SyncSessionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pontos_sync_sessions_live",
		Help: "Sync sessions currently in live mode",
	})
	SyncSessionsDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pontos_sync_sessions_degraded",
		Help: "Sync sessions currently in degraded (pull) mode",
	})
	SyncFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pontos_sync_fallback_total",
		Help: "Total live-subscription failures that fell back to pull",
	})
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pontos_stream_clients",
		Help: "Connected websocket stream clients",
	})
)

func init() {
	prometheus.MustRegister(PointsListTotal)
	prometheus.MustRegister(PointsCreateTotal)
	prometheus.MustRegister(PointsDeniedTotal)
	prometheus.MustRegister(PointsInvalidTotal)
	prometheus.MustRegister(SubmitOriginTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(NominatimRequestsTotal)
	prometheus.MustRegister(NominatimFailTotal)
	prometheus.MustRegister(NominatimDurationMs)
	prometheus.MustRegister(ReverseCacheHitsTotal)
	prometheus.MustRegister(ReverseCacheMissesTotal)
	prometheus.MustRegister(SyncSessionsLive)
	prometheus.MustRegister(SyncSessionsDegraded)
	prometheus.MustRegister(SyncFallbackTotal)
	prometheus.MustRegister(StreamClients)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
