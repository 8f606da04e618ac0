// Package registry holds the model family configurations and derives the
// block definitions an editor offers for each family.
//
// A Registry is filled once at startup, from Go values or from CUE family
// files, and then sealed. After Seal it is read-only and safe for concurrent
// use.
package registry
