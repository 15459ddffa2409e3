// Package promutil reads back the values of Prometheus metrics, mostly for
// tests asserting on instrumentation.
package promutil

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CollectorFunc implements a Prometheus Collector with a single function.
// Descriptions are derived by collecting once, so every metric must be
// emitted on each call.
type CollectorFunc func(ch chan<- prometheus.Metric)

var _ prometheus.Collector = (CollectorFunc)(nil)

func (c CollectorFunc) Collect(ch chan<- prometheus.Metric) { c(ch) }
func (c CollectorFunc) Describe(ch chan<- *prometheus.Desc) { prometheus.DescribeByCollect(c, ch) }

func mustWrite(m prometheus.Metric) *dto.Metric {
	var written dto.Metric
	if err := m.Write(&written); err != nil {
		panic("failed to read Prometheus metric: " + err.Error())
	}
	return &written
}

// MustCounterValue returns the current value of a counter metric.
// If any error occurs, this function panics.
func MustCounterValue(m prometheus.Metric) float64 {
	return mustWrite(m).GetCounter().GetValue()
}

// MustGaugeValue returns the current value of a gauge metric.
// If any error occurs, this function panics.
func MustGaugeValue(m prometheus.Metric) float64 {
	return mustWrite(m).GetGauge().GetValue()
}
