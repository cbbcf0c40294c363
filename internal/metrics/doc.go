// Package metrics defines the Prometheus metrics exposed by the PicFinder
// indexing service. All metrics are registered via promauto at package load.
package metrics
