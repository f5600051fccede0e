// Package execshell runs git for the synchronization engine.
//
// ShellExecutor wraps a CommandRunner (OSCommandRunner by default) with zap
// lifecycle logging, optional console observers, and typed errors that keep
// the captured standard error available for failure classification.
package execshell
