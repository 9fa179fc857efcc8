package game

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики матчей.
// Nil *Metrics допустим: все методы становятся no-op.
type Metrics struct {
	active    prometheus.Gauge
	ended     *prometheus.CounterVec
	points    *prometheus.CounterVec
	impacts   *prometheus.CounterVec
	subSteps  prometheus.Counter
	dropped   prometheus.Counter
	frameTime prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pong",
			Name:      "matches_active",
			Help:      "Матчи, чей игровой цикл ещё идёт.",
		}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pong",
			Name:      "matches_ended_total",
			Help:      "Завершённые матчи по результату (finished/failed).",
		}, []string{"result"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pong",
			Name:      "points_total",
			Help:      "Забитые очки по стороне.",
		}, []string{"side"}),
		impacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pong",
			Name:      "ball_impacts_total",
			Help:      "Удары мяча по цели (paddle/wall).",
		}, []string{"target"}),
		subSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pong",
			Name:      "physics_substeps_total",
			Help:      "Выполненные подшаги физики.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pong",
			Name:      "frame_dropped_seconds_total",
			Help:      "Время сверх max_frame, отброшенное при обрезке кадров.",
		}),
		frameTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pong",
			Name:      "frame_duration_seconds",
			Help:      "Время обработки одного кадра матча.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
	reg.MustRegister(m.active, m.ended, m.points, m.impacts, m.subSteps, m.dropped, m.frameTime)
	return m
}

func (m *Metrics) matchAdded() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) matchRemoved() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) matchEnded(result string) {
	if m != nil {
		m.ended.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) point(side Side) {
	if m != nil {
		m.points.WithLabelValues(side.String()).Inc()
	}
}

func (m *Metrics) impact(target string) {
	if m != nil {
		m.impacts.WithLabelValues(target).Inc()
	}
}

func (m *Metrics) frame(steps int, seconds float64) {
	if m != nil {
		m.subSteps.Add(float64(steps))
		m.frameTime.Observe(seconds)
	}
}

func (m *Metrics) droppedTime(seconds float64) {
	if m != nil {
		m.dropped.Add(seconds)
	}
}
