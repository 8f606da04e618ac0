package ir

// Version constants for the snapshot format and the toolchain.
const (
	// FormatVersion is the newest snapshot format this build reads and writes.
	FormatVersion = 1

	// EngineVersion is the kobra toolchain version.
	EngineVersion = "0.1.0"
)
