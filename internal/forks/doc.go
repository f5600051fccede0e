// Package forks wires the sync command: it merges configured and discovered
// repositories, runs them through the batch orchestrator, and writes the report.
package forks
