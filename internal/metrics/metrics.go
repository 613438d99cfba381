// Package metrics 文档生成的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 生成过程的指标集合，nil 时所有方法为空操作
type Metrics struct {
	DocumentsTotal    *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	UnresolvedTotal   prometheus.Counter
	UnlocatableTotal  prometheus.Counter
	ActiveRecipients  prometheus.Gauge
}

// New 在给定的注册器上注册指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "letters_documents_total",
				Help: "Total number of generated documents by status",
			},
			[]string{"profile", "status"},
		),
		GenerationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "letters_generation_seconds",
				Help:    "Duration of single document generation in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"profile"},
		),
		UnresolvedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "letters_unresolved_variables_total",
			Help: "Located placeholders without a value",
		}),
		UnlocatableTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "letters_unlocatable_tokens_total",
			Help: "Requested placeholders not found in the template",
		}),
		ActiveRecipients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "letters_active_recipients",
			Help: "Recipients currently being generated",
		}),
	}
}

// Begin 标记一个收件人开始处理
func (m *Metrics) Begin() {
	if m == nil {
		return
	}
	m.ActiveRecipients.Inc()
}

// Observe 记录一个收件人的处理结果
func (m *Metrics) Observe(profile, status string, elapsed time.Duration, unresolved, unlocatable int) {
	if m == nil {
		return
	}
	m.ActiveRecipients.Dec()
	m.DocumentsTotal.WithLabelValues(profile, status).Inc()
	m.GenerationSeconds.WithLabelValues(profile).Observe(elapsed.Seconds())
	m.UnresolvedTotal.Add(float64(unresolved))
	m.UnlocatableTotal.Add(float64(unlocatable))
}

// Skipped 记录未开始处理的收件人
func (m *Metrics) Skipped(profile, status string) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(profile, status).Inc()
}

// WriteTextfile 把注册器中的指标写入 node_exporter 文本文件
func WriteTextfile(gatherer prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, gatherer)
}
