package snapshot

import (
	"errors"
	"fmt"
)

// UnsupportedVersionError reports a snapshot written by a newer format.
// Version is zero when the stored number does not fit an int32; Raw always
// holds the number as written.
type UnsupportedVersionError struct {
	Version   int
	Raw       string
	Supported int
}

func (e *UnsupportedVersionError) Error() string {
	v := e.Raw
	if v == "" {
		v = fmt.Sprint(e.Version)
	}
	return fmt.Sprintf("snapshot format version %s is newer than supported version %d", v, e.Supported)
}

// MalformedSnapshotError reports a structural defect in a snapshot.
type MalformedSnapshotError struct {
	Reason string
	Err    error
}

func (e *MalformedSnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed snapshot: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed snapshot: %s", e.Reason)
}

func (e *MalformedSnapshotError) Unwrap() error { return e.Err }

// IsUnsupportedVersion returns true if err wraps an UnsupportedVersionError.
func IsUnsupportedVersion(err error) bool {
	var e *UnsupportedVersionError
	return errors.As(err, &e)
}

// IsMalformed returns true if err wraps a MalformedSnapshotError.
func IsMalformed(err error) bool {
	var e *MalformedSnapshotError
	return errors.As(err, &e)
}

func malformed(format string, args ...any) error {
	return &MalformedSnapshotError{Reason: fmt.Sprintf(format, args...)}
}
