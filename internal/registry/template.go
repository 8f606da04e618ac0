package registry

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kobra-dev/kobra/internal/ir"
)

// TemplateData is what a family's create, fit and predict templates see.
// Every field holds already-rendered source text.
type TemplateData struct {
	Model    string            // binding of the model, e.g. model_c1
	Params   string            // create parameters as a literal
	Features string            // fit features expression
	Labels   string            // fit labels expression
	Input    string            // predict input expression
	Extra    map[string]string // extra fit parameters by id
}

// familyTemplates are the parsed templates of one family.
type familyTemplates struct {
	create  *template.Template
	fit     *template.Template
	predict *template.Template
}

func (t familyTemplates) get(bt ir.BlockType) *template.Template {
	switch bt {
	case ir.BlockCreate:
		return t.create
	case ir.BlockFit:
		return t.fit
	case ir.BlockPredict:
		return t.predict
	}
	return nil
}

// parseTemplates parses and test-renders every template of cfg. Rendering
// against sample data catches references to unknown fields and extra
// parameters the family does not declare.
func parseTemplates(cfg ir.FamilyConfig) (familyTemplates, error) {
	sample := TemplateData{
		Model:    "model_x",
		Params:   "{}",
		Features: "features",
		Labels:   "labels",
		Input:    "input",
		Extra:    make(map[string]string, len(cfg.AdditionalFitParams)),
	}
	for _, p := range cfg.AdditionalFitParams {
		sample.Extra[p.ID] = p.ID
	}

	var out familyTemplates
	for _, src := range []struct {
		field string
		text  string
		dst   **template.Template
	}{
		{"createTemplate", cfg.CreateTemplate, &out.create},
		{"fitTemplate", cfg.FitTemplate, &out.fit},
		{"predictTemplate", cfg.PredictTemplate, &out.predict},
	} {
		tmpl, err := template.New(cfg.ID + "." + src.field).Option("missingkey=error").Parse(src.text)
		if err != nil {
			return familyTemplates{}, &ConfigError{Code: ErrCodeTemplate, Family: cfg.ID, Field: src.field, Message: err.Error()}
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, sample); err != nil {
			return familyTemplates{}, &ConfigError{Code: ErrCodeTemplate, Family: cfg.ID, Field: src.field, Message: err.Error()}
		}
		*src.dst = tmpl
	}
	return out, nil
}

// Render expands the template of the given block type for a family.
func (r *Registry) Render(familyID string, bt ir.BlockType, data TemplateData) (string, error) {
	r.mu.RLock()
	tmpls, ok := r.templates[familyID]
	r.mu.RUnlock()
	if !ok {
		return "", &ir.NotFoundError{Kind: "family", ID: familyID}
	}
	tmpl := tmpls.get(bt)
	if tmpl == nil {
		return "", fmt.Errorf("render %s: block type %q has no template", familyID, bt)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s %s: %w", familyID, bt, err)
	}
	return buf.String(), nil
}
