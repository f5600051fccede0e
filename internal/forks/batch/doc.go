// Package batch runs fork syncs for many repositories on a bounded worker pool
// and aggregates their outcomes into a single Result.
package batch
