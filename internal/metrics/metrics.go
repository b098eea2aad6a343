// SPDX-License-Identifier: MIT

// Package metrics exposes prometheus collectors for the telepost daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	filesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telepost_files_ingested_total",
		Help: "Inbound file events by outcome",
	}, []string{"outcome"}) // outcome=accepted|skipped|archive_failed|unconfigured

	ingestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "telepost_ingest_queue_depth",
		Help: "Current depth of the inbound file-event queue",
	})

	// Collection metrics
	windowsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telepost_windows_opened_total",
		Help: "Collection windows opened",
	})

	windowsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telepost_windows_finalized_total",
		Help: "Collection windows finalized by outcome",
	}, []string{"outcome"}) // outcome=published|failed|empty

	pendingQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telepost_pending_queued_total",
		Help: "Files deferred to the pending queue while finalization was in progress",
	})

	batchesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telepost_batches_published_total",
		Help: "Logical batches published to destination channels",
	})

	// Gateway metrics
	floodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telepost_gateway_flood_waits_total",
		Help: "Flood-wait cooldowns observed on gateway calls",
	})

	gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telepost_gateway_calls_total",
		Help: "Messaging gateway calls by method and outcome",
	}, []string{"method", "outcome"})

	// HTTP delivery metrics
	streamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telepost_stream_requests_total",
		Help: "File delivery requests by route and status class",
	}, []string{"route", "status"})
)

// RecordIngest counts one inbound file event with its outcome.
func RecordIngest(outcome string) { filesIngested.WithLabelValues(outcome).Inc() }

// SetIngestQueueDepth reports the current ingest queue depth.
func SetIngestQueueDepth(n int) { ingestQueueDepth.Set(float64(n)) }

// RecordWindowOpened counts a newly opened collection window.
func RecordWindowOpened() { windowsOpened.Inc() }

// RecordWindowFinalized counts a finalized window with its terminal outcome.
func RecordWindowFinalized(outcome string) { windowsFinalized.WithLabelValues(outcome).Inc() }

// RecordPendingQueued counts a file deferred mid-finalization.
func RecordPendingQueued() { pendingQueued.Inc() }

// RecordBatchPublished counts a published logical batch.
func RecordBatchPublished() { batchesPublished.Inc() }

// RecordFloodWait counts a gateway flood-wait cooldown.
func RecordFloodWait() { floodWaits.Inc() }

// RecordGatewayCall counts one gateway call.
func RecordGatewayCall(method, outcome string) {
	gatewayCalls.WithLabelValues(method, outcome).Inc()
}

// RecordStreamRequest counts one HTTP delivery request.
func RecordStreamRequest(route, status string) {
	streamRequests.WithLabelValues(route, status).Inc()
}
