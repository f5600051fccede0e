// Package report summarizes batch sync results and encodes them as text,
// JSON, YAML, or CSV.
package report
