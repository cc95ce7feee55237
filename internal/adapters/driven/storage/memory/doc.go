// Package memory provides in-memory store implementations used by tests and
// by ephemeral runs that do not need persistence.
package memory
