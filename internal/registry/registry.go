package registry

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"

	"github.com/kobra-dev/kobra/internal/ir"
)

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// validate checks FamilyConfig struct tags. Field names in errors are the
// JSON names so they match CUE and snapshot documents.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Registry maps family ids to their configurations.
type Registry struct {
	mu        sync.RWMutex
	families  map[string]ir.FamilyConfig
	templates map[string]familyTemplates
	sealed    bool

	// CUE values are not safe for concurrent use; cueMu guards every
	// operation on cueCtx and constraints.
	cueMu       sync.Mutex
	cueCtx      *cue.Context
	constraints map[string]map[string]cue.Value // family -> param -> constraint
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		families:    make(map[string]ir.FamilyConfig),
		templates:   make(map[string]familyTemplates),
		cueCtx:      cuecontext.New(),
		constraints: make(map[string]map[string]cue.Value),
	}
}

// Register adds a family. The configuration is copied; later changes to cfg
// do not affect the registry.
func (r *Registry) Register(cfg ir.FamilyConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return configErrorFromValidator(cfg.ID, err)
	}

	seen := make(map[string]bool, len(cfg.AdditionalFitParams))
	for i, p := range cfg.AdditionalFitParams {
		if reservedPort(p.ID) {
			return &ConfigError{
				Code:    ErrCodeInvalidConfig,
				Family:  cfg.ID,
				Field:   fmt.Sprintf("additionalFitParams[%d].id", i),
				Message: fmt.Sprintf("%q collides with a fit input port", p.ID),
			}
		}
		if seen[p.ID] {
			return &ConfigError{
				Code:    ErrCodeDuplicate,
				Family:  cfg.ID,
				Field:   fmt.Sprintf("additionalFitParams[%d].id", i),
				Message: fmt.Sprintf("duplicate parameter %q", p.ID),
			}
		}
		seen[p.ID] = true
	}

	tmpls, err := parseTemplates(cfg)
	if err != nil {
		return err
	}

	constraints, err := r.compileConstraints(cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return &ConfigError{Code: ErrCodeSealed, Family: cfg.ID, Field: "registry", Message: "registry is sealed"}
	}
	if _, exists := r.families[cfg.ID]; exists {
		return &ConfigError{Code: ErrCodeDuplicate, Family: cfg.ID, Field: "id", Message: "family already registered"}
	}
	cfg.AdditionalFitParams = slices.Clone(cfg.AdditionalFitParams)
	r.families[cfg.ID] = cfg
	r.templates[cfg.ID] = tmpls

	r.cueMu.Lock()
	r.constraints[cfg.ID] = constraints
	r.cueMu.Unlock()
	return nil
}

// MustRegister registers each config and panics on the first error.
// Use only in tests and for built-in families.
func (r *Registry) MustRegister(cfgs ...ir.FamilyConfig) *Registry {
	for _, cfg := range cfgs {
		if err := r.Register(cfg); err != nil {
			panic(err)
		}
	}
	return r
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns a copy of the family's configuration.
func (r *Registry) Lookup(id string) (ir.FamilyConfig, error) {
	r.mu.RLock()
	cfg, ok := r.families[id]
	r.mu.RUnlock()
	if !ok {
		return ir.FamilyConfig{}, &ir.NotFoundError{Kind: "family", ID: id}
	}
	cfg.AdditionalFitParams = slices.Clone(cfg.AdditionalFitParams)
	return cfg, nil
}

// Families returns every registered family ordered by id.
func (r *Registry) Families() []ir.FamilyConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ir.FamilyConfig, 0, len(r.families))
	for _, cfg := range r.families {
		cfg.AdditionalFitParams = slices.Clone(cfg.AdditionalFitParams)
		out = append(out, cfg)
	}
	slices.SortFunc(out, func(a, b ir.FamilyConfig) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// compileConstraints compiles each non-empty validationExpr of cfg.
func (r *Registry) compileConstraints(cfg ir.FamilyConfig) (map[string]cue.Value, error) {
	r.cueMu.Lock()
	defer r.cueMu.Unlock()

	out := make(map[string]cue.Value)
	for i, p := range cfg.AdditionalFitParams {
		if strings.TrimSpace(p.ValidationExpr) == "" {
			continue
		}
		v := r.cueCtx.CompileString(p.ValidationExpr, cue.Filename(cfg.ID+"."+p.ID))
		if err := v.Err(); err != nil {
			return nil, &ConfigError{
				Code:    ErrCodeConstraint,
				Family:  cfg.ID,
				Field:   fmt.Sprintf("additionalFitParams[%d].validationExpr", i),
				Message: err.Error(),
			}
		}
		out[p.ID] = v
	}
	return out, nil
}

// CheckParam checks a literal against the validationExpr of an extra fit
// parameter. Parameters without a constraint accept any literal.
func (r *Registry) CheckParam(familyID, paramID string, v ir.Value) error {
	cfg, err := r.Lookup(familyID)
	if err != nil {
		return err
	}
	var param *ir.FitParam
	for i := range cfg.AdditionalFitParams {
		if cfg.AdditionalFitParams[i].ID == paramID {
			param = &cfg.AdditionalFitParams[i]
			break
		}
	}
	if param == nil {
		return &ir.NotFoundError{Kind: "parameter", ID: familyID + "." + paramID}
	}

	r.cueMu.Lock()
	defer r.cueMu.Unlock()
	constraint, ok := r.constraints[familyID][paramID]
	if !ok {
		return nil
	}
	unified := constraint.Unify(r.cueCtx.Encode(ir.ToGo(v)))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ParamError{
			Family:     familyID,
			Param:      paramID,
			Value:      ir.Format(v),
			Constraint: param.ValidationExpr,
			Message:    param.Message,
			Err:        err,
		}
	}
	return nil
}

// configErrorFromValidator reports the first failing field.
func configErrorFromValidator(family string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ConfigError{Code: ErrCodeInvalidConfig, Family: family, Field: "config", Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, found := strings.Cut(field, "."); found {
		field = rest
	}
	return &ConfigError{Code: ErrCodeInvalidConfig, Family: family, Field: field, Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "notblank":
		return "must not be blank"
	case "ident":
		return fmt.Sprintf("%q is not an identifier", fe.Value())
	case "oneof":
		return fmt.Sprintf("%v is not one of %s", fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}
