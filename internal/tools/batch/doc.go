// Package batch holds the shared pieces of multi-item tool operations:
// parsing arguments that arrive as either one value or a list, running a
// function over every item while tolerating per-item failures, and rendering
// the aggregated outcome as JSON.
package batch
