// Package driving provides interfaces for primary/inbound ports.
// External actors (CLI, HTTP handlers, schedulers) drive the core through
// these interfaces.
package driving
