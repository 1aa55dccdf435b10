// Package console provides the output sinks the Manager streams to: terminal
// consoles for command and machine output, an output container that tracks
// registered consoles, and notifiers for user-facing messages.
package console
