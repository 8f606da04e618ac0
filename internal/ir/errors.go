package ir

import (
	"errors"
	"fmt"
)

// NotFoundError reports a lookup for an unknown family, project or model.
type NotFoundError struct {
	Kind string // "family", "project", "model", "instance"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFound returns true if err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError reports a write that would replace an immutable record with
// different content.
type ConflictError struct {
	Kind     string
	ID       string
	Stored   string // digest already stored
	Incoming string // digest of the rejected write
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already stored with digest %s, refusing digest %s", e.Kind, e.ID, e.Stored, e.Incoming)
}

// IsConflict returns true if err wraps a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
