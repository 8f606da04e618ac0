package registry

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/kobra-dev/kobra/internal/ir"
)

//go:embed schema.cue
var schemaSource string

//go:embed builtin.cue
var builtinSource []byte

// LoadCUE compiles a CUE family file and registers every family it declares,
// in declaration order:
//
//	family: linreg: {
//		friendlyName: "Linear regression"
//		...
//	}
func (r *Registry) LoadCUE(filename string, src []byte) error {
	r.cueMu.Lock()
	v := r.cueCtx.CompileBytes(src, cue.Filename(filename))
	r.cueMu.Unlock()
	return r.registerCUE(v)
}

// LoadDir loads the CUE package in dir and registers its families.
func (r *Registry) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return &ConfigError{Code: ErrCodeCUE, Field: "families", Message: err.Error()}
	}
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return &ConfigError{Code: ErrCodeCUE, Field: "families", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return &ConfigError{Code: ErrCodeCUE, Field: "families", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	r.cueMu.Lock()
	v := r.cueCtx.BuildInstance(inst)
	r.cueMu.Unlock()
	return r.registerCUE(v)
}

func (r *Registry) registerCUE(v cue.Value) error {
	cfgs, err := r.decodeFamilies(v)
	if err != nil {
		return err
	}
	for _, cfg := range cfgs {
		if err := r.Register(cfg); err != nil {
			return err
		}
	}
	return nil
}

// decodeFamilies unifies v with the family schema and decodes each entry
// under "family".
func (r *Registry) decodeFamilies(v cue.Value) ([]ir.FamilyConfig, error) {
	r.cueMu.Lock()
	defer r.cueMu.Unlock()

	if err := v.Err(); err != nil {
		return nil, formatCUEError("", err)
	}
	schema := r.cueCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("family schema: %w", err)
	}
	v = schema.Unify(v)

	familiesVal := v.LookupPath(cue.ParsePath("family"))
	if !familiesVal.Exists() {
		return nil, &ConfigError{Code: ErrCodeCUE, Field: "family", Message: "no families declared", Pos: v.Pos()}
	}
	iter, err := familiesVal.Fields()
	if err != nil {
		return nil, formatCUEError("", err)
	}

	var cfgs []ir.FamilyConfig
	for iter.Next() {
		id := iter.Label()
		fv := iter.Value()
		if err := fv.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(id, err)
		}
		var cfg ir.FamilyConfig
		if err := fv.Decode(&cfg); err != nil {
			return nil, formatCUEError(id, err)
		}
		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) == 0 {
		return nil, &ConfigError{Code: ErrCodeCUE, Field: "family", Message: "no families declared", Pos: v.Pos()}
	}
	return cfgs, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(family string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Code: ErrCodeCUE, Family: family, Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	ce := &ConfigError{Code: ErrCodeCUE, Family: family, Field: "cue", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ce.Field = path[len(path)-1]
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// Builtin returns a registry holding the built-in families, unsealed so
// callers may add their own before sealing.
func Builtin() (*Registry, error) {
	r := New()
	if err := r.LoadCUE("builtin.cue", builtinSource); err != nil {
		return nil, fmt.Errorf("builtin families: %w", err)
	}
	return r, nil
}

// Default returns the sealed built-in registry. It panics if the embedded
// families do not load.
func Default() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	r.Seal()
	return r
}
