package registry

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Registry error codes (E200-E209)
const (
	ErrCodeInvalidConfig = "E200" // struct-level validation failed
	ErrCodeDuplicate     = "E201" // family id already registered
	ErrCodeTemplate      = "E202" // template does not parse or render
	ErrCodeConstraint    = "E203" // validationExpr does not compile
	ErrCodeSealed        = "E204" // registry is sealed
	ErrCodeCUE           = "E205" // CUE family file could not be loaded
	ErrCodeParam         = "E206" // literal violates a fit parameter constraint
)

// ConfigError reports a family configuration that cannot be registered.
// Field names the offending field using its JSON name, e.g.
// "predictInputType" or "additionalFitParams[0].validationExpr".
type ConfigError struct {
	Code    string
	Family  string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	prefix := ""
	if e.Pos.IsValid() {
		prefix = fmt.Sprintf("%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Family != "" {
		return fmt.Sprintf("%s[%s] family %q: %s: %s", prefix, e.Code, e.Family, e.Field, e.Message)
	}
	return fmt.Sprintf("%s[%s] %s: %s", prefix, e.Code, e.Field, e.Message)
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// ParamError reports an extra fit parameter literal that violates the
// family's validationExpr.
type ParamError struct {
	InstanceID string // set by the validator
	Family     string
	Param      string
	Value      string
	Constraint string
	Message    string
	Err        error
}

func (e *ParamError) Error() string {
	msg := fmt.Sprintf("[%s] %s.%s = %s does not satisfy %q", ErrCodeParam, e.Family, e.Param, e.Value, e.Constraint)
	if e.InstanceID != "" {
		msg = fmt.Sprintf("[%s] instance %q: %s = %s does not satisfy %q", ErrCodeParam, e.InstanceID, e.Param, e.Value, e.Constraint)
	}
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

func (e *ParamError) Unwrap() error { return e.Err }

// IsParamError reports whether err is a ParamError.
func IsParamError(err error) bool {
	var e *ParamError
	return errors.As(err, &e)
}
