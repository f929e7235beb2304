// Package store defines the typed repository interfaces the crawl pipeline
// persists through (items, checkpoints, cross references, epochs).
// Implementations live in internal/storage; this package must not import
// database drivers or concrete clients.
package store
