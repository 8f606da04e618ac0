// Package snapshot encodes a whole editing session (block graph, plot state
// and console state) as one versioned JSON document, and decodes it back.
//
// Load is all-or-nothing: it either returns a complete Snapshot or an error,
// never a partial triple.
package snapshot
