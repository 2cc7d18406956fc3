// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_channels_loaded",
		Help: "Channels in the last successfully loaded list",
	})

	channelReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_channel_reloads_total",
		Help: "Channel list reloads by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_store_operations_total",
		Help: "Settings store operations by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"})

	playlistExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playlist_exports_total",
		Help: "M3U playlist exports by outcome",
	}, []string{"outcome"})
)

// RecordChannelReload records a channel list load.
func RecordChannelReload(count int, err error) {
	if err != nil {
		channelReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	channelReloadsTotal.WithLabelValues("success").Inc()
	channelsLoaded.Set(float64(count))
}

// IncConfigValidationError counts a rejected configuration.
func IncConfigValidationError() {
	configValidationErrors.Inc()
}

// RecordStoreOp records one settings store operation.
func RecordStoreOp(backend, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	storeOperationsTotal.WithLabelValues(normalizeBackendLabel(backend), strings.ToLower(op), outcome).Inc()
}

// RecordPlaylistExport records one playlist export.
func RecordPlaylistExport(err error) {
	if err != nil {
		playlistExportsTotal.WithLabelValues("failure").Inc()
		return
	}
	playlistExportsTotal.WithLabelValues("success").Inc()
}

func normalizeBackendLabel(b string) string {
	switch v := strings.ToLower(strings.TrimSpace(b)); v {
	case "memory", "sqlite", "badger", "redis":
		return v
	default:
		return "unknown"
	}
}
