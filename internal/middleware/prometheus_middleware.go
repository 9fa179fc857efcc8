package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware HTTP-метрики для Gin.
//
//	mw := middleware.NewPrometheusMiddleware("pong_api", prometheus.DefaultRegisterer)
//	r.Use(mw.Handler())
//	mw.RegisterMetricsEndpoint(r, prometheus.DefaultGatherer)
//
// Метрики:
// * http_requests_total{method,route,code}
// * http_request_duration_seconds{method,route} (без WebSocket-потоков)
// * http_requests_inflight
// * ws_streams_active: открытые потоки снимков
type PrometheusMiddleware struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	streams  prometheus.Gauge
}

// NewPrometheusMiddleware создаёт middleware и регистрирует метрики в reg.
func NewPrometheusMiddleware(service string, reg prometheus.Registerer) *PrometheusMiddleware {
	pm := &PrometheusMiddleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_requests_total",
			Help:      "HTTP-запросы по маршруту и коду ответа.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "http_requests_inflight",
			Help:      "Обрабатываемые HTTP-запросы.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "ws_streams_active",
			Help:      "Открытые WebSocket-потоки снимков матчей.",
		}),
	}

	reg.MustRegister(pm.requests, pm.duration, pm.inflight, pm.streams)
	return pm
}

// Handler возвращает gin.HandlerFunc для router.Use().
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched" // произвольные URL не становятся метками
		}
		method := c.Request.Method

		// Поток живёт столько же, сколько матч: считаем его отдельно
		if isUpgrade(c.Request) {
			pm.streams.Inc()
			c.Next()
			pm.streams.Dec()
			pm.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		start := time.Now()
		pm.inflight.Inc()
		c.Next()
		pm.inflight.Dec()

		pm.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		pm.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// RegisterMetricsEndpoint добавляет GET /metrics, отдающий метрики из g.
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
