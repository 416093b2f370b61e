// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects verification outcomes.
//
// It implements prometheus.Collector.
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates verification metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appsig",
				Name:      "verifications_total",
				Help:      "Total number of signature verifications by outcome",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "appsig",
			Name:      "verification_duration_seconds",
			Help:      "Duration of signature verifications in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.verifications.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.verifications.Collect(ch)
	m.duration.Collect(ch)
}

// Count returns the counter of the given outcome.
func (m *Metrics) Count(reason Reason) prometheus.Counter {
	return m.verifications.WithLabelValues(reason.String())
}

func (m *Metrics) observe(result Result, d time.Duration) {
	m.Count(result.Reason).Inc()
	m.duration.Observe(d.Seconds())
}
