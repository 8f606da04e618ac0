package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Validation error codes (E100-E119)
const (
	ErrCodeMalformed    = "E101" // structural defect: duplicate id, dangling ref, unknown family
	ErrCodeCycle        = "E102" // graph contains a cycle
	ErrCodeTypeMismatch = "E103" // connection or literal tag mismatch
	ErrCodeFamily       = "E104" // model input resolves to another family or to no create block
	ErrCodeTerminal     = "E105" // predict output feeds a fit or create input
	ErrCodeUnbound      = "E106" // input port has neither a connection nor a literal
	ErrCodeCompile      = "E110" // compilation aborted by a validation failure
)

// Reasons carried by TypeMismatchError.
const (
	ReasonType     = "type"
	ReasonLiteral  = "literal"
	ReasonFamily   = "family"
	ReasonTerminal = "terminal"
)

// MalformedGraphError reports a graph that cannot be analysed at all.
type MalformedGraphError struct {
	InstanceID string
	Message    string
}

func (e *MalformedGraphError) Error() string {
	if e.InstanceID == "" {
		return fmt.Sprintf("[%s] malformed graph: %s", ErrCodeMalformed, e.Message)
	}
	return fmt.Sprintf("[%s] malformed graph: instance %q: %s", ErrCodeMalformed, e.InstanceID, e.Message)
}

// CyclicGraphError lists every strongly connected component of size > 1 and
// every self-loop. Each component is sorted; components are ordered by their
// first id.
type CyclicGraphError struct {
	Cycles [][]string
	Path   []string // one traversal of the first cycle, first id repeated at the end
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("[%s] cycle detected: %s", ErrCodeCycle, strings.Join(e.Path, " → "))
}

// InstanceIDs returns every instance on any cycle, sorted.
func (e *CyclicGraphError) InstanceIDs() []string {
	var ids []string
	for _, c := range e.Cycles {
		ids = append(ids, c...)
	}
	return sortedUnique(ids)
}

// TypeMismatchError reports an illegal connection or literal.
//
// SourceID is empty when the offending value is a literal.
type TypeMismatchError struct {
	SourceID string
	DestID   string
	Port     string
	Expected string
	Actual   string
	Reason   string
}

func (e *TypeMismatchError) Error() string {
	src := e.SourceID
	if src == "" {
		src = "literal"
	}
	return fmt.Sprintf("[%s] %s -> %s.%s: expected %s, got %s (%s)", e.Code(), src, e.DestID, e.Port, e.Expected, e.Actual, e.Reason)
}

// Code returns the error code for the mismatch reason.
func (e *TypeMismatchError) Code() string {
	switch e.Reason {
	case ReasonFamily:
		return ErrCodeFamily
	case ReasonTerminal:
		return ErrCodeTerminal
	}
	return ErrCodeTypeMismatch
}

// UnboundPortError reports an input port with no connection and no literal.
type UnboundPortError struct {
	InstanceID string
	Port       string
}

func (e *UnboundPortError) Error() string {
	return fmt.Sprintf("[%s] instance %q: input %q is not connected and has no literal value", ErrCodeUnbound, e.InstanceID, e.Port)
}

// CompileError wraps the validation failure that stopped compilation.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%s] compile: %v", ErrCodeCompile, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IsTypeMismatch returns true if err wraps a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// IsCyclic returns true if err wraps a CyclicGraphError.
func IsCyclic(err error) bool {
	var e *CyclicGraphError
	return errors.As(err, &e)
}

// IsMalformed returns true if err wraps a MalformedGraphError.
func IsMalformed(err error) bool {
	var e *MalformedGraphError
	return errors.As(err, &e)
}

// IsUnbound returns true if err wraps an UnboundPortError.
func IsUnbound(err error) bool {
	var e *UnboundPortError
	return errors.As(err, &e)
}
