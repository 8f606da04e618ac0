package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kobra-dev/kobra/internal/compiler"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/sandbox"
	"github.com/kobra-dev/kobra/internal/snapshot"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The graph did not validate, compile or run
	ExitCommandError = 2 // Command error (unreadable files, bad flags, store failures)
)

// CLI error codes for failures that are not typed domain errors.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeIO        = "E002" // file or store could not be read or written
	ErrCodeNotFound  = "E003"
	ErrCodeConflict  = "E004" // stored record differs from the one being written
	ErrCodeSnapshot  = "E300" // stored project is malformed
	ErrCodeVersion   = "E301" // stored project has a newer format version
	ErrCodeExecution = "E400" // a statement failed at run time
	ErrCodeCancelled = "E401"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode maps a domain error to its stable code.
func ErrorCode(err error) string {
	var (
		malformed *compiler.MalformedGraphError
		cyclic    *compiler.CyclicGraphError
		mismatch  *compiler.TypeMismatchError
		unbound   *compiler.UnboundPortError
		config    *registry.ConfigError
		param     *registry.ParamError
	)
	switch {
	case errors.As(err, &cyclic):
		return compiler.ErrCodeCycle
	case errors.As(err, &mismatch):
		return mismatch.Code()
	case errors.As(err, &unbound):
		return compiler.ErrCodeUnbound
	case errors.As(err, &malformed):
		return compiler.ErrCodeMalformed
	case errors.As(err, &param):
		return registry.ErrCodeParam
	case errors.As(err, &config):
		return config.Code
	case snapshot.IsUnsupportedVersion(err):
		return ErrCodeVersion
	case snapshot.IsMalformed(err):
		return ErrCodeSnapshot
	case sandbox.IsCancelled(err):
		return ErrCodeCancelled
	case sandbox.IsExecutionError(err):
		return ErrCodeExecution
	case ir.IsConflict(err):
		return ErrCodeConflict
	case ir.IsNotFound(err):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose and diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E101", "E400", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Text output prints data with fmt; types that want a readable rendering
// implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err with its domain code and returns an ExitError carrying
// exitCode. details is included in JSON output and in verbose text output.
func (f *OutputFormatter) Fail(exitCode int, message string, err error, details any) error {
	if outErr := f.Error(ErrorCode(err), err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
