// Package metrics exposes Prometheus counters for the acquisition pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssetsFetched tracks assets successfully localized (downloaded or clipped).
	AssetsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_assets_fetched_total",
		Help: "The total number of assets successfully localized.",
	})
	// AssetsFailed tracks assets that failed after exhausting retries.
	AssetsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_assets_failed_total",
		Help: "The total number of asset fetches that failed terminally.",
	})
	// BytesDownloaded tracks raw bytes streamed from remote assets.
	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_bytes_downloaded_total",
		Help: "The total number of asset bytes downloaded.",
	})
	// RetryAttempts tracks fetch operations that had to be retried.
	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_retry_attempts_total",
		Help: "The total number of retried fetch operations.",
	})
	// ItemsProcessed tracks items fully mutated and persisted.
	ItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_items_processed_total",
		Help: "The total number of catalog items written to the output.",
	})
	// ItemsDropped tracks items excluded from the output after an error.
	ItemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacfetch_items_dropped_total",
		Help: "The total number of catalog items dropped from the output.",
	})
)
