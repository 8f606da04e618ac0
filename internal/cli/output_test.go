package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/compiler"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/sandbox"
	"github.com/kobra-dev/kobra/internal/snapshot"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E101", "malformed graph", map[string]string{"instance": "a"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Equal(t, "malformed graph", resp.Error.Message)
	assert.Equal(t, map[string]any{"instance": "a"}, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E001", "boom", "hidden"))
	assert.Equal(t, "Error [E001]: boom\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E001", "boom", "shown"))
	assert.Contains(t, buf.String(), "Details: shown")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := &compiler.UnboundPortError{InstanceID: "p", Port: "input"}
	err := formatter.Fail(ExitFailure, "compilation failed", cause, nil)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [E106]")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}

	formatter.VerboseLog("Loaded %d blocks", 3)
	assert.Empty(t, diag.String())

	formatter.Verbose = true
	formatter.VerboseLog("Loaded %d blocks", 3)
	assert.Equal(t, "Loaded 3 blocks\n", diag.String())
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open", errors.New("disk")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "open: disk", WrapExitError(ExitCommandError, "open", errors.New("disk")).Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"malformed", &compiler.MalformedGraphError{Message: "x"}, compiler.ErrCodeMalformed},
		{"cycle", &compiler.CompileError{Err: &compiler.CyclicGraphError{}}, compiler.ErrCodeCycle},
		{"type", &compiler.TypeMismatchError{Reason: compiler.ReasonType}, compiler.ErrCodeTypeMismatch},
		{"family", &compiler.TypeMismatchError{Reason: compiler.ReasonFamily}, compiler.ErrCodeFamily},
		{"terminal", &compiler.TypeMismatchError{Reason: compiler.ReasonTerminal}, compiler.ErrCodeTerminal},
		{"unbound", &compiler.UnboundPortError{}, compiler.ErrCodeUnbound},
		{"param", &registry.ParamError{}, registry.ErrCodeParam},
		{"config", &registry.ConfigError{Code: registry.ErrCodeDuplicate}, registry.ErrCodeDuplicate},
		{"version", &snapshot.UnsupportedVersionError{Version: 2, Supported: 1}, ErrCodeVersion},
		{"snapshot", &snapshot.MalformedSnapshotError{Reason: "x"}, ErrCodeSnapshot},
		{"cancelled", &sandbox.CancelledError{}, ErrCodeCancelled},
		{"execution", &sandbox.ExecutionError{InstanceID: "f", Cause: errors.New("x")}, ErrCodeExecution},
		{"not found", &ir.NotFoundError{Kind: "project", ID: "p"}, ErrCodeNotFound},
		{"conflict", &ir.ConflictError{Kind: "model", ID: "m"}, ErrCodeConflict},
		{"other", errors.New("x"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
