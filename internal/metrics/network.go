// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	networkSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_network_samples_total",
		Help: "Network samples by speed class",
	}, []string{"speed"})

	networkSamplesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_network_samples_debounced_total",
		Help: "On-demand samples suppressed by the minimum sampling interval",
	})

	networkProbeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tvplay_network_probe_duration_seconds",
		Help:    "Latency of successful network probes",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	subscriberPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_network_subscriber_panics_total",
		Help: "Network subscribers that panicked during delivery",
	})
)

// RecordNetworkSample counts a completed sample.
func RecordNetworkSample(speed string) {
	networkSamplesTotal.WithLabelValues(normalizeSpeedLabel(speed)).Inc()
}

// RecordSampleSuppressed counts a debounced sample request.
func RecordSampleSuppressed() {
	networkSamplesSuppressed.Inc()
}

// ObserveProbe records the latency of a successful probe.
func ObserveProbe(d time.Duration) {
	networkProbeSeconds.Observe(d.Seconds())
}

// RecordSubscriberPanic counts a recovered subscriber panic.
func RecordSubscriberPanic() {
	subscriberPanicsTotal.Inc()
}

func normalizeSpeedLabel(speed string) string {
	switch v := strings.ToLower(strings.TrimSpace(speed)); v {
	case "fast", "medium", "slow", "unstable", "unknown":
		return v
	default:
		return "unknown"
	}
}
