// Package sandbox runs compiled block programs.
//
// A Sandbox exposes three things to a program and nothing else: the model
// family capabilities it was built with, an append-only console and a plot
// that is only ever replaced through a read-modify-write. Statements run one
// at a time in program order. Cancellation is honoured between statements,
// never inside one.
package sandbox
