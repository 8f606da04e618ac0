package ir

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TypeTag constrains which connections between ports are legal.
type TypeTag string

const (
	TagArray  TypeTag = "Array"
	TagNumber TypeTag = "Number"
	TagNone   TypeTag = "None"

	// TagModel marks create outputs and model inputs. It never appears in a
	// family's predict signature.
	TagModel TypeTag = "Model"
)

// Valid reports whether t is a known tag.
func (t TypeTag) Valid() bool {
	switch t {
	case TagArray, TagNumber, TagNone, TagModel:
		return true
	}
	return false
}

// PredictTag reports whether t may be used as a predict input or output type.
func (t TypeTag) PredictTag() bool {
	return t == TagArray || t == TagNumber || t == TagNone
}

// BlockType identifies one block of the create/fit/predict vocabulary, or
// one of the family-less display blocks.
type BlockType string

const (
	BlockCreate  BlockType = "create"
	BlockFit     BlockType = "fit"
	BlockPredict BlockType = "predict"
	BlockPrint   BlockType = "print"
	BlockPlot    BlockType = "plot"
)

// Valid reports whether b is a known block type.
func (b BlockType) Valid() bool {
	switch b {
	case BlockCreate, BlockFit, BlockPredict, BlockPrint, BlockPlot:
		return true
	}
	return false
}

// HasFamily reports whether blocks of this type belong to a model family.
func (b BlockType) HasFamily() bool {
	return b == BlockCreate || b == BlockFit || b == BlockPredict
}

// FitParam is an extra literal input on a family's fit block.
type FitParam struct {
	ID             string `json:"id" validate:"required,ident"`
	Message        string `json:"message"`
	ValidationExpr string `json:"validationExpr"` // CUE constraint, e.g. "int & >0"
}

// FamilyConfig is the registered configuration of one model family.
// Immutable once registered.
type FamilyConfig struct {
	ID                  string     `json:"id" validate:"required,ident"`
	FriendlyName        string     `json:"friendlyName" validate:"required,notblank"`
	CreateTemplate      string     `json:"createTemplate" validate:"required"`
	FitTemplate         string     `json:"fitTemplate" validate:"required"`
	PredictTemplate     string     `json:"predictTemplate" validate:"required"`
	PredictInputType    TypeTag    `json:"predictInputType" validate:"required,oneof=Array Number None"`
	PredictOutputType   TypeTag    `json:"predictOutputType" validate:"required,oneof=Array Number None"`
	Colour              int        `json:"colour" validate:"gte=0,lte=360"`
	AdditionalFitParams []FitParam `json:"additionalFitParams" validate:"dive"`
}

// PortSpec describes one input port of a block.
type PortSpec struct {
	Name    string    `json:"name"`
	Tags    []TypeTag `json:"typeTags"`
	Literal bool      `json:"literal,omitempty"` // extra fit parameter port
}

// Accepts reports whether a source tagged src may feed this port.
// None is a wildcard on either side.
func (p PortSpec) Accepts(src TypeTag) bool {
	if src == TagNone {
		return true
	}
	for _, t := range p.Tags {
		if t == TagNone || t == src {
			return true
		}
	}
	return false
}

// TagString renders the accepted tags as "Array|Number".
func (p PortSpec) TagString() string {
	parts := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}

// PortRef points at an output port of another instance.
type PortRef struct {
	InstanceID string `json:"instanceId"`
	Port       int    `json:"outputPortIndex"`
}

// InputPort is an input port of a placed block, with its optional source.
type InputPort struct {
	PortSpec
	Source *PortRef `json:"sourceRef,omitempty"`
}

// OutputPort is the single output port of a block.
type OutputPort struct {
	Tag TypeTag `json:"typeTag"`
}

// BlockInstance is one block placed in the graph.
type BlockInstance struct {
	ID     string      `json:"instanceId"`
	Type   BlockType   `json:"blockType"`
	Family string      `json:"familyId,omitempty"`
	Params Params      `json:"parameterValues"`
	Inputs []InputPort `json:"inputPorts"`
	Output OutputPort  `json:"outputPort"`
}

// Input returns the index of the named input port.
func (b BlockInstance) Input(name string) (int, bool) {
	for i, p := range b.Inputs {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a deep copy of the instance.
func (b BlockInstance) Clone() BlockInstance {
	out := b
	if b.Params != nil {
		out.Params = make(Params, len(b.Params))
		for k, v := range b.Params {
			out.Params[k] = v
		}
	}
	if b.Inputs != nil {
		out.Inputs = make([]InputPort, len(b.Inputs))
		for i, p := range b.Inputs {
			p.Tags = slices.Clone(p.Tags)
			if p.Source != nil {
				src := *p.Source
				p.Source = &src
			}
			out.Inputs[i] = p
		}
	}
	return out
}

// Connection is an edge between an output port and an input port.
type Connection struct {
	FromID   string `json:"fromId"`
	FromPort int    `json:"fromPort"`
	ToID     string `json:"toId"`
	ToPort   int    `json:"toPort"`
}

// Graph editing errors.
var (
	ErrDuplicateInstance = errors.New("duplicate instance id")
	ErrUnknownInstance   = errors.New("unknown instance id")
	ErrUnknownPort       = errors.New("unknown input port")
)

// BlockGraph is the set of placed blocks and their connections.
// Connections live on the destination's input ports.
//
// INVARIANT: Instances are ordered by ID when built through Add.
type BlockGraph struct {
	Instances []BlockInstance `json:"instances"`
}

// Find returns the index of the instance with the given ID, or -1.
func (g *BlockGraph) Find(id string) int {
	i, ok := slices.BinarySearchFunc(g.Instances, id, func(b BlockInstance, id string) int {
		return strings.Compare(b.ID, id)
	})
	if ok && g.Instances[i].ID == id {
		return i
	}
	// Fall back to a scan for graphs that were not built through Add.
	for j := range g.Instances {
		if g.Instances[j].ID == id {
			return j
		}
	}
	return -1
}

// Instance returns the instance with the given ID.
func (g *BlockGraph) Instance(id string) (BlockInstance, bool) {
	i := g.Find(id)
	if i < 0 {
		return BlockInstance{}, false
	}
	return g.Instances[i], true
}

// Add inserts b keeping instances ordered by ID.
func (g *BlockGraph) Add(b BlockInstance) error {
	i, found := slices.BinarySearchFunc(g.Instances, b.ID, func(x BlockInstance, id string) int {
		return strings.Compare(x.ID, id)
	})
	if found {
		return fmt.Errorf("add %q: %w", b.ID, ErrDuplicateInstance)
	}
	g.Instances = slices.Insert(g.Instances, i, b)
	return nil
}

// Remove deletes the instance and clears every port it fed.
func (g *BlockGraph) Remove(id string) bool {
	i := g.Find(id)
	if i < 0 {
		return false
	}
	g.Instances = slices.Delete(g.Instances, i, i+1)
	for j := range g.Instances {
		for k := range g.Instances[j].Inputs {
			if src := g.Instances[j].Inputs[k].Source; src != nil && src.InstanceID == id {
				g.Instances[j].Inputs[k].Source = nil
			}
		}
	}
	return true
}

// Connect wires the output of fromID into the named input port of toID.
// Type compatibility is the validator's concern, not the editor's.
func (g *BlockGraph) Connect(fromID, toID, port string) error {
	if g.Find(fromID) < 0 {
		return fmt.Errorf("connect %s -> %s: %w: %q", fromID, toID, ErrUnknownInstance, fromID)
	}
	di := g.Find(toID)
	if di < 0 {
		return fmt.Errorf("connect %s -> %s: %w: %q", fromID, toID, ErrUnknownInstance, toID)
	}
	pi, ok := g.Instances[di].Input(port)
	if !ok {
		return fmt.Errorf("connect %s -> %s: %w: %q", fromID, toID, ErrUnknownPort, port)
	}
	g.Instances[di].Inputs[pi].Source = &PortRef{InstanceID: fromID}
	return nil
}

// SetParam sets a parameter or port literal on an instance.
func (g *BlockGraph) SetParam(id, name string, v Value) error {
	i := g.Find(id)
	if i < 0 {
		return fmt.Errorf("set param %s.%s: %w", id, name, ErrUnknownInstance)
	}
	if g.Instances[i].Params == nil {
		g.Instances[i].Params = Params{}
	}
	g.Instances[i].Params[name] = v
	return nil
}

// Connections lists every edge ordered by (ToID, ToPort).
func (g *BlockGraph) Connections() []Connection {
	var conns []Connection
	for _, b := range g.Instances {
		for pi, p := range b.Inputs {
			if p.Source == nil {
				continue
			}
			conns = append(conns, Connection{
				FromID:   p.Source.InstanceID,
				FromPort: p.Source.Port,
				ToID:     b.ID,
				ToPort:   pi,
			})
		}
	}
	slices.SortFunc(conns, func(a, b Connection) int {
		if c := strings.Compare(a.ToID, b.ToID); c != 0 {
			return c
		}
		return a.ToPort - b.ToPort
	})
	return conns
}

// Clone returns a deep copy of the graph.
func (g BlockGraph) Clone() BlockGraph {
	if g.Instances == nil {
		return BlockGraph{}
	}
	out := BlockGraph{Instances: make([]BlockInstance, len(g.Instances))}
	for i, b := range g.Instances {
		out.Instances[i] = b.Clone()
	}
	return out
}

// Normalize orders instances by ID.
func (g *BlockGraph) Normalize() {
	slices.SortStableFunc(g.Instances, func(a, b BlockInstance) int {
		return strings.Compare(a.ID, b.ID)
	})
}
