package registry

import (
	"fmt"

	"github.com/kobra-dev/kobra/internal/ir"
)

// Input port names shared by the registry, the validator and the generator.
const (
	PortModel    = "model"
	PortFeatures = "features"
	PortLabels   = "labels"
	PortInput    = "input"
	PortValue    = "value"
	PortX        = "x"
	PortY        = "y"

	// ParamTitle is the plot block's title literal.
	ParamTitle = "title"
)

func reservedPort(name string) bool {
	switch name {
	case PortModel, PortFeatures, PortLabels:
		return true
	}
	return false
}

// BlockDef describes a block an editor can place.
type BlockDef struct {
	Type   ir.BlockType      `json:"blockType"`
	Family string            `json:"familyId,omitempty"`
	Name   string            `json:"name"`   // e.g. linreg_fit
	Label  string            `json:"label"`  // text shown on the block
	Colour int               `json:"colour"` // hue
	Inputs []ir.PortSpec     `json:"inputs"`
	Output ir.TypeTag        `json:"output"`
	Hints  map[string]string `json:"hints,omitempty"` // port -> prompt for literal ports
}

// DeriveBlockDefs returns the create, fit and predict definitions of a family.
func (r *Registry) DeriveBlockDefs(familyID string) ([3]BlockDef, error) {
	cfg, err := r.Lookup(familyID)
	if err != nil {
		return [3]BlockDef{}, err
	}
	return deriveBlockDefs(cfg), nil
}

func deriveBlockDefs(cfg ir.FamilyConfig) [3]BlockDef {
	create := BlockDef{
		Type:   ir.BlockCreate,
		Family: cfg.ID,
		Name:   cfg.ID + "_create",
		Label:  "Create " + cfg.FriendlyName,
		Colour: cfg.Colour,
		Inputs: []ir.PortSpec{},
		Output: ir.TagModel,
	}

	fitInputs := []ir.PortSpec{
		{Name: PortModel, Tags: []ir.TypeTag{ir.TagModel}},
		{Name: PortFeatures, Tags: []ir.TypeTag{ir.TagArray}},
		{Name: PortLabels, Tags: []ir.TypeTag{ir.TagArray, ir.TagNumber}},
	}
	var hints map[string]string
	for _, p := range cfg.AdditionalFitParams {
		fitInputs = append(fitInputs, ir.PortSpec{Name: p.ID, Tags: []ir.TypeTag{ir.TagNone}, Literal: true})
		if p.Message != "" {
			if hints == nil {
				hints = make(map[string]string)
			}
			hints[p.ID] = p.Message
		}
	}
	fit := BlockDef{
		Type:   ir.BlockFit,
		Family: cfg.ID,
		Name:   cfg.ID + "_fit",
		Label:  "Fit " + cfg.FriendlyName,
		Colour: cfg.Colour,
		Inputs: fitInputs,
		Output: ir.TagNone,
		Hints:  hints,
	}

	predict := BlockDef{
		Type:   ir.BlockPredict,
		Family: cfg.ID,
		Name:   cfg.ID + "_predict",
		Label:  "Predict with " + cfg.FriendlyName,
		Colour: cfg.Colour,
		Inputs: []ir.PortSpec{
			{Name: PortModel, Tags: []ir.TypeTag{ir.TagModel}},
			{Name: PortInput, Tags: []ir.TypeTag{cfg.PredictInputType}},
		},
		Output: cfg.PredictOutputType,
	}
	return [3]BlockDef{create, fit, predict}
}

// DisplayBlockDefs returns the family-less print and plot definitions.
func DisplayBlockDefs() []BlockDef {
	return []BlockDef{
		{
			Type:   ir.BlockPrint,
			Name:   "print",
			Label:  "Print",
			Colour: 160,
			Inputs: []ir.PortSpec{{Name: PortValue, Tags: []ir.TypeTag{ir.TagNone}}},
			Output: ir.TagNone,
		},
		{
			Type:   ir.BlockPlot,
			Name:   "plot",
			Label:  "Plot",
			Colour: 160,
			Inputs: []ir.PortSpec{
				{Name: PortX, Tags: []ir.TypeTag{ir.TagArray}},
				{Name: PortY, Tags: []ir.TypeTag{ir.TagArray}},
			},
			Output: ir.TagNone,
			Hints:  map[string]string{ParamTitle: "Plot title"},
		},
	}
}

// BlockDef returns the definition for a block type, resolving the family for
// create, fit and predict.
func (r *Registry) BlockDef(bt ir.BlockType, familyID string) (BlockDef, error) {
	if !bt.Valid() {
		return BlockDef{}, fmt.Errorf("unknown block type %q", bt)
	}
	if !bt.HasFamily() {
		for _, def := range DisplayBlockDefs() {
			if def.Type == bt {
				return def, nil
			}
		}
	}
	defs, err := r.DeriveBlockDefs(familyID)
	if err != nil {
		return BlockDef{}, err
	}
	for _, def := range defs {
		if def.Type == bt {
			return def, nil
		}
	}
	return BlockDef{}, fmt.Errorf("unknown block type %q", bt)
}

// NewInstance places a block with unconnected input ports built from its
// definition.
func (r *Registry) NewInstance(id string, bt ir.BlockType, familyID string) (ir.BlockInstance, error) {
	if !bt.HasFamily() && familyID != "" {
		return ir.BlockInstance{}, fmt.Errorf("new instance %s: %s blocks have no family", id, bt)
	}
	def, err := r.BlockDef(bt, familyID)
	if err != nil {
		return ir.BlockInstance{}, fmt.Errorf("new instance %s: %w", id, err)
	}
	inputs := make([]ir.InputPort, len(def.Inputs))
	for i, spec := range def.Inputs {
		spec.Tags = append([]ir.TypeTag(nil), spec.Tags...)
		inputs[i] = ir.InputPort{PortSpec: spec}
	}
	return ir.BlockInstance{
		ID:     id,
		Type:   bt,
		Family: def.Family,
		Inputs: inputs,
		Output: ir.OutputPort{Tag: def.Output},
	}, nil
}
