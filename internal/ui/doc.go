// Package ui formats git activity for people watching a sync run in a terminal.
//
// Structured logs keep flowing through the primary logger; this package only
// adds the human-readable console rendering of command lifecycle events.
package ui
