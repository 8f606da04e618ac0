package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// Program is a compiled block graph: statements in execution order.
type Program struct {
	Statements []Statement `json:"statements"`
	Hash       string      `json:"hash"` // ProgramHash of the statement texts
}

// Texts returns the rendered statement texts in order.
func (p *Program) Texts() []string {
	out := make([]string, len(p.Statements))
	for i, st := range p.Statements {
		out[i] = st.Text
	}
	return out
}

// Source renders the program as one statement per line.
func (p *Program) Source() string {
	if len(p.Statements) == 0 {
		return ""
	}
	return strings.Join(p.Texts(), "\n") + "\n"
}

// Statement is one compiled block. Text is the rendered family template;
// Call is the structured form the sandbox executes.
type Statement struct {
	InstanceID string       `json:"instanceId"`
	Block      ir.BlockType `json:"blockType"`
	Family     string       `json:"familyId,omitempty"`
	Binding    string       `json:"binding,omitempty"` // model_<id> or pred_<id>
	Text       string       `json:"text"`
	Call       Call         `json:"call"`
}

// Call holds the resolved inputs of a statement.
type Call struct {
	Label  string         `json:"label,omitempty"` // family friendly name
	Model  string         `json:"model,omitempty"` // create instance owning the model (fit, predict)
	Params ir.Params      `json:"params,omitempty"`
	Args   map[string]Arg `json:"args,omitempty"`  // by input port name
	Extra  []string       `json:"extra,omitempty"` // extra fit parameters in declaration order
}

// Arg is either the output of another instance or a literal.
type Arg struct {
	From  string   `json:"from,omitempty"`
	Value ir.Value `json:"value,omitempty"`
}

// Binding returns the name a block's result is bound to, or "" for blocks
// that bind nothing.
func Binding(b ir.BlockInstance) string {
	switch b.Type {
	case ir.BlockCreate:
		return "model_" + b.ID
	case ir.BlockPredict:
		return "pred_" + b.ID
	}
	return ""
}

// Compile validates g and emits its statements in a deterministic
// topological order: Kahn's algorithm, ready blocks taken by ascending id.
// On any validation failure it returns a *CompileError and no program.
func Compile(schema Schema, g ir.BlockGraph) (*Program, error) {
	if err := Validate(schema, g); err != nil {
		return nil, &CompileError{Err: err}
	}
	v, err := newGraphView(schema, g)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	order, err := topoOrder(v.dependencies())
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	prog := &Program{Statements: make([]Statement, 0, len(order))}
	for _, id := range order {
		st, err := v.emit(v.byID[id])
		if err != nil {
			return nil, &CompileError{Err: err}
		}
		prog.Statements = append(prog.Statements, st)
	}

	hash, err := ir.ProgramHash(prog.Texts())
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	prog.Hash = hash
	return prog, nil
}

// topoOrder runs Kahn's algorithm keeping the ready set sorted.
func topoOrder(g dependencyGraph) ([]string, error) {
	indegree := make(map[string]int, len(g))
	for _, id := range g.nodes() {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, w := range g[id] {
			indegree[w]++
		}
	}

	var ready []string
	for _, id := range g.nodes() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, w := range g[id] {
			indegree[w]--
			if indegree[w] == 0 {
				i, _ := slices.BinarySearch(ready, w)
				ready = slices.Insert(ready, i, w)
			}
		}
	}
	if len(order) != len(g) {
		return nil, fmt.Errorf("topological order: %d of %d blocks ordered", len(order), len(g))
	}
	return order, nil
}

// emit renders the statement for one block.
func (v *graphView) emit(b *ir.BlockInstance) (Statement, error) {
	st := Statement{
		InstanceID: b.ID,
		Block:      b.Type,
		Family:     b.Family,
		Binding:    Binding(*b),
	}

	switch b.Type {
	case ir.BlockCreate:
		cfg, err := v.schema.Lookup(b.Family)
		if err != nil {
			return Statement{}, err
		}
		text, err := v.schema.Render(b.Family, ir.BlockCreate, registry.TemplateData{
			Model:  st.Binding,
			Params: formatKwargs(b.Params),
		})
		if err != nil {
			return Statement{}, err
		}
		st.Text = st.Binding + " = " + text
		st.Call = Call{Label: cfg.FriendlyName, Params: maps.Clone(b.Params)}

	case ir.BlockFit, ir.BlockPredict:
		cfg, err := v.schema.Lookup(b.Family)
		if err != nil {
			return Statement{}, err
		}
		create, ok := v.resolveModel(b)
		if !ok {
			return Statement{}, fmt.Errorf("instance %q: model input does not resolve to a create block", b.ID)
		}
		data := registry.TemplateData{Model: Binding(*create), Extra: make(map[string]string)}
		call := Call{Label: cfg.FriendlyName, Model: create.ID, Args: make(map[string]Arg)}
		for i, p := range b.Inputs {
			if p.Name == registry.PortModel {
				continue
			}
			arg, text := v.arg(b, i)
			call.Args[p.Name] = arg
			switch {
			case p.Literal:
				data.Extra[p.Name] = text
				call.Extra = append(call.Extra, p.Name)
			case p.Name == registry.PortFeatures:
				data.Features = text
			case p.Name == registry.PortLabels:
				data.Labels = text
			case p.Name == registry.PortInput:
				data.Input = text
			}
		}
		text, err := v.schema.Render(b.Family, b.Type, data)
		if err != nil {
			return Statement{}, err
		}
		if st.Binding != "" {
			text = st.Binding + " = " + text
		}
		st.Text = text
		st.Call = call

	case ir.BlockPrint:
		arg, text := v.arg(b, 0)
		st.Text = "print(" + text + ")"
		st.Call = Call{Args: map[string]Arg{registry.PortValue: arg}}

	case ir.BlockPlot:
		x, xText := v.arg(b, 0)
		y, yText := v.arg(b, 1)
		title := ir.Value(ir.String(""))
		if t, ok := b.Params[registry.ParamTitle]; ok {
			title = t
		}
		st.Text = fmt.Sprintf("plot(%s, %s, title=%s)", xText, yText, ir.Format(title))
		st.Call = Call{
			Params: ir.Params{registry.ParamTitle: title},
			Args:   map[string]Arg{registry.PortX: x, registry.PortY: y},
		}

	default:
		return Statement{}, fmt.Errorf("instance %q: unknown block type %q", b.ID, b.Type)
	}
	return st, nil
}

// arg resolves input port i of b to an Arg and its source text.
func (v *graphView) arg(b *ir.BlockInstance, i int) (Arg, string) {
	if src, ok := v.source(b, i); ok {
		if name := Binding(*src); name != "" {
			return Arg{From: src.ID}, name
		}
		return Arg{From: src.ID}, "None"
	}
	lit := b.Params[b.Inputs[i].Name]
	return Arg{Value: lit}, ir.Format(lit)
}

// formatKwargs renders parameters as "name=value" pairs in key order.
func formatKwargs(p ir.Params) string {
	keys := p.SortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + ir.Format(p[k])
	}
	return strings.Join(parts, ", ")
}
