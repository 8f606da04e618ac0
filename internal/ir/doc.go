// Package ir provides the shared value types for kobra block programs.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the block graph, the
// literal values flowing through it and the session state (plot, console)
// in one foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Literal values are a closed union (Number, String, Bool, Array)
//   - Port type tags are one of Array, Number, None, plus the internal Model tag
//   - JSON tags follow the snapshot wire shape (camelCase)
//   - Graph instances are kept ordered by instance ID
package ir
