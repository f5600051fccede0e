// Package cli constructs the forksync command-line interface, wiring the
// Cobra command hierarchy, the Viper backed configuration loader, and zap
// logging around the sync command.
package cli
