// Package metrics defines the Prometheus collectors exported by the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubtestsTotal counts completed or failed subtests by kind and result.
	SubtestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rspeed_subtests_total",
			Help: "Number of subtests run, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// CyclesTotal counts measurement cycles by result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rspeed_cycles_total",
			Help: "Number of measurement cycles, by result.",
		},
		[]string{"result"},
	)

	// Throughput is the distribution of measured throughput in Mb/s.
	Throughput = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rspeed_throughput_mbps",
			Help:    "Measured throughput in megabits per second.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		},
		[]string{"kind"},
	)

	// Duration is the distribution of measured subtest durations.
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rspeed_subtest_duration_seconds",
			Help:    "Measured subtest duration in seconds.",
			Buckets: prometheus.LinearBuckets(1, 2, 15),
		},
		[]string{"kind"},
	)

	// PayloadLength is the payload length chosen for the next subtest.
	PayloadLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rspeed_payload_length_bytes",
			Help: "Payload length used by the next subtest, by kind.",
		},
		[]string{"kind"},
	)
)
