// Package harness runs block-graph scenarios end to end: compile a graph,
// execute it against the built-in families and check the program, console
// and plot against declared expectations and golden files.
//
// # Scenario Format
//
//	name: linreg_pipeline
//	description: "create, fit and predict with linear regression"
//	families:            # optional CUE family files; defaults to built-ins
//	  - families/extra.cue
//	cancel_after: 2      # optional; cancel the run after N statements
//	roundtrip: true      # optional; save and reload the session snapshot
//	graph:
//	  blocks:
//	    - id: lr_create
//	      type: create
//	      family: linreg
//	expect:
//	  error: ""          # "", cyclic, type_mismatch, malformed, unbound, param, execution, cancelled
//	  statements: [...]  # optional exact statement texts
//	assertions:
//	  - type: console_contains
//	    text: "fitted"
//
// # Assertion Types
//
//   - console_contains: some console line contains Text
//   - console_equals: console line texts equal Lines
//   - statement_order: Instances appear in this relative order in the program
//   - statement_count: the program has Count statements
//   - plot: the plot has Title and Count traces
//   - cycle: the reported cycle lists exactly Instances
//
// Runs are deterministic: scenarios use an in-memory gateway and the
// compiled order depends only on the graph.
package harness
