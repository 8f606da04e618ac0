package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// Schema is the view of the family registry that validation and code
// generation need. *registry.Registry implements it.
type Schema interface {
	Lookup(familyID string) (ir.FamilyConfig, error)
	BlockDef(bt ir.BlockType, familyID string) (registry.BlockDef, error)
	CheckParam(familyID, paramID string, v ir.Value) error
	Render(familyID string, bt ir.BlockType, data registry.TemplateData) (string, error)
}

// Validate checks a block graph. It is pure and returns the first failure,
// in this order:
//  1. structure: ids, block types, families, port layouts, references
//  2. acyclicity, including the fit-before-predict ordering edges
//  3. connection type tags
//  4. family consistency and the terminal predict output
//  5. port binding and extra fit parameter constraints
func Validate(schema Schema, g ir.BlockGraph) error {
	v, err := newGraphView(schema, g)
	if err != nil {
		return err
	}
	if err := v.checkCycles(); err != nil {
		return err
	}
	if err := v.checkTypes(); err != nil {
		return err
	}
	if err := v.checkFamilies(); err != nil {
		return err
	}
	return v.checkBindings()
}

// graphView indexes a graph for analysis.
type graphView struct {
	schema Schema
	ids    []string // ascending
	byID   map[string]*ir.BlockInstance
}

func newGraphView(schema Schema, g ir.BlockGraph) (*graphView, error) {
	v := &graphView{
		schema: schema,
		byID:   make(map[string]*ir.BlockInstance, len(g.Instances)),
	}
	for i := range g.Instances {
		b := &g.Instances[i]
		if b.ID == "" {
			return nil, &MalformedGraphError{Message: fmt.Sprintf("instance at index %d has no id", i)}
		}
		if _, dup := v.byID[b.ID]; dup {
			return nil, &MalformedGraphError{InstanceID: b.ID, Message: "duplicate instance id"}
		}
		v.byID[b.ID] = b
		v.ids = append(v.ids, b.ID)
	}
	slices.Sort(v.ids)

	for _, id := range v.ids {
		if err := v.checkStructure(v.byID[id]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// checkStructure verifies one instance against its block definition.
func (v *graphView) checkStructure(b *ir.BlockInstance) error {
	if !b.Type.Valid() {
		return &MalformedGraphError{InstanceID: b.ID, Message: fmt.Sprintf("unknown block type %q", b.Type)}
	}
	if b.Type.HasFamily() {
		if b.Family == "" {
			return &MalformedGraphError{InstanceID: b.ID, Message: fmt.Sprintf("%s block has no family", b.Type)}
		}
		if _, err := v.schema.Lookup(b.Family); err != nil {
			return &MalformedGraphError{InstanceID: b.ID, Message: fmt.Sprintf("unknown family %q", b.Family)}
		}
	} else if b.Family != "" {
		return &MalformedGraphError{InstanceID: b.ID, Message: fmt.Sprintf("%s block cannot have a family", b.Type)}
	}

	def, err := v.schema.BlockDef(b.Type, b.Family)
	if err != nil {
		return &MalformedGraphError{InstanceID: b.ID, Message: err.Error()}
	}
	if len(def.Inputs) != len(b.Inputs) {
		return &MalformedGraphError{
			InstanceID: b.ID,
			Message:    fmt.Sprintf("has %d input ports, %s blocks have %d", len(b.Inputs), def.Name, len(def.Inputs)),
		}
	}
	for i, p := range b.Inputs {
		if p.Name != def.Inputs[i].Name {
			return &MalformedGraphError{
				InstanceID: b.ID,
				Message:    fmt.Sprintf("input %d is %q, expected %q", i, p.Name, def.Inputs[i].Name),
			}
		}
		if p.Source == nil {
			continue
		}
		if _, ok := v.byID[p.Source.InstanceID]; !ok {
			return &MalformedGraphError{
				InstanceID: b.ID,
				Message:    fmt.Sprintf("input %q references unknown instance %q", p.Name, p.Source.InstanceID),
			}
		}
		if p.Source.Port != 0 {
			return &MalformedGraphError{
				InstanceID: b.ID,
				Message:    fmt.Sprintf("input %q references output port %d of %q; blocks have one output", p.Name, p.Source.Port, p.Source.InstanceID),
			}
		}
	}
	return nil
}

// connectionGraph has one edge per connection.
func (v *graphView) connectionGraph() dependencyGraph {
	g := make(dependencyGraph, len(v.ids))
	for _, id := range v.ids {
		if _, ok := g[id]; !ok {
			g[id] = nil
		}
		for _, p := range v.byID[id].Inputs {
			if p.Source != nil {
				g.addEdge(p.Source.InstanceID, id)
			}
		}
	}
	return g
}

// dependencies adds to the connection graph an edge from every fit of a
// model to every predict of that model, so trained models are used only
// after training. Model resolution assumes the connection graph is acyclic.
func (v *graphView) dependencies() dependencyGraph {
	g := v.connectionGraph()
	fits := make(map[string][]string)
	var predicts []string
	for _, id := range v.ids {
		b := v.byID[id]
		switch b.Type {
		case ir.BlockFit:
			if create, ok := v.resolveModel(b); ok {
				fits[create.ID] = append(fits[create.ID], id)
			}
		case ir.BlockPredict:
			predicts = append(predicts, id)
		}
	}
	for _, pid := range predicts {
		create, ok := v.resolveModel(v.byID[pid])
		if !ok {
			continue
		}
		for _, fid := range fits[create.ID] {
			g.addEdge(fid, pid)
		}
	}
	return g
}

func (v *graphView) checkCycles() error {
	if cyc := findCycles(v.connectionGraph()); cyc != nil {
		return cyc
	}
	if cyc := findCycles(v.dependencies()); cyc != nil {
		return cyc
	}
	return nil
}

// source returns the instance feeding input port i of b.
func (v *graphView) source(b *ir.BlockInstance, i int) (*ir.BlockInstance, bool) {
	src := b.Inputs[i].Source
	if src == nil {
		return nil, false
	}
	s, ok := v.byID[src.InstanceID]
	return s, ok
}

// resolveModel follows the model input of a fit or predict block through any
// fit blocks to the create block that owns the model.
func (v *graphView) resolveModel(b *ir.BlockInstance) (*ir.BlockInstance, bool) {
	seen := make(map[string]bool)
	cur := b
	for !seen[cur.ID] {
		seen[cur.ID] = true
		mi, ok := cur.Input(registry.PortModel)
		if !ok {
			return nil, false
		}
		src, ok := v.source(cur, mi)
		if !ok {
			return nil, false
		}
		switch src.Type {
		case ir.BlockCreate:
			return src, true
		case ir.BlockFit:
			cur = src
		default:
			return nil, false
		}
	}
	return nil, false
}

func (v *graphView) checkTypes() error {
	for _, id := range v.ids {
		b := v.byID[id]
		for i, p := range b.Inputs {
			src, ok := v.source(b, i)
			if !ok {
				continue
			}
			if !p.Accepts(src.Output.Tag) {
				return &TypeMismatchError{
					SourceID: src.ID,
					DestID:   b.ID,
					Port:     p.Name,
					Expected: p.TagString(),
					Actual:   string(src.Output.Tag),
					Reason:   ReasonType,
				}
			}
		}
	}
	return nil
}

func (v *graphView) checkFamilies() error {
	for _, id := range v.ids {
		b := v.byID[id]
		for i, p := range b.Inputs {
			src, ok := v.source(b, i)
			if !ok {
				continue
			}
			if src.Type == ir.BlockPredict && (b.Type == ir.BlockFit || b.Type == ir.BlockCreate) {
				return &TypeMismatchError{
					SourceID: src.ID,
					DestID:   b.ID,
					Port:     p.Name,
					Expected: "training data",
					Actual:   "prediction",
					Reason:   ReasonTerminal,
				}
			}
		}

		if b.Type != ir.BlockFit && b.Type != ir.BlockPredict {
			continue
		}
		mi, _ := b.Input(registry.PortModel)
		src, ok := v.source(b, mi)
		if !ok {
			continue // reported as unbound
		}
		create, ok := v.resolveModel(b)
		if !ok && src.Type == ir.BlockFit {
			continue // the upstream fit reports its own model input
		}
		if !ok {
			return &TypeMismatchError{
				SourceID: src.ID,
				DestID:   b.ID,
				Port:     registry.PortModel,
				Expected: "model of family " + b.Family,
				Actual:   fmt.Sprintf("output of %s block", src.Type),
				Reason:   ReasonFamily,
			}
		}
		if create.Family != b.Family {
			return &TypeMismatchError{
				SourceID: src.ID,
				DestID:   b.ID,
				Port:     registry.PortModel,
				Expected: "model of family " + b.Family,
				Actual:   "model of family " + create.Family,
				Reason:   ReasonFamily,
			}
		}
	}
	return nil
}

func (v *graphView) checkBindings() error {
	for _, id := range v.ids {
		b := v.byID[id]
		for _, p := range b.Inputs {
			if p.Source != nil {
				continue
			}
			lit, ok := b.Params[p.Name]
			if !ok || lit == nil {
				return &UnboundPortError{InstanceID: b.ID, Port: p.Name}
			}
			if slices.Contains(p.Tags, ir.TagModel) {
				// Models only come from create blocks.
				return &UnboundPortError{InstanceID: b.ID, Port: p.Name}
			}
			if !literalFits(p.PortSpec, lit) {
				return &TypeMismatchError{
					DestID:   b.ID,
					Port:     p.Name,
					Expected: p.TagString(),
					Actual:   literalKind(lit),
					Reason:   ReasonLiteral,
				}
			}
			if p.Literal {
				if err := v.schema.CheckParam(b.Family, p.Name, lit); err != nil {
					var pe *registry.ParamError
					if errors.As(err, &pe) {
						pe.InstanceID = b.ID
						return pe
					}
					return fmt.Errorf("instance %q: %w", b.ID, err)
				}
			}
		}
		if b.Type == ir.BlockPlot {
			if t, ok := b.Params[registry.ParamTitle]; ok {
				if _, isString := t.(ir.String); !isString {
					return &TypeMismatchError{
						DestID:   b.ID,
						Port:     registry.ParamTitle,
						Expected: "string",
						Actual:   literalKind(t),
						Reason:   ReasonLiteral,
					}
				}
			}
		}
	}
	return nil
}

// literalFits is stricter than PortSpec.Accepts: a literal is only a
// wildcard when the port itself is None-tagged.
func literalFits(p ir.PortSpec, lit ir.Value) bool {
	if slices.Contains(p.Tags, ir.TagNone) {
		return true
	}
	tag := ir.TagOf(lit)
	return tag != ir.TagNone && slices.Contains(p.Tags, tag)
}

func literalKind(v ir.Value) string {
	switch v.(type) {
	case ir.Number:
		return "Number"
	case ir.Array:
		return "Array"
	case ir.String:
		return "string"
	case ir.Bool:
		return "bool"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "ir.")
}
