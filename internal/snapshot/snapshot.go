package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/kobra-dev/kobra/internal/ir"
)

// Snapshot is one session triple.
type Snapshot struct {
	Graph   ir.BlockGraph
	Plot    ir.PlotState
	Console ir.ConsoleState
}

// Blocks rebuilds block instances from their type and family.
type Blocks interface {
	NewInstance(id string, bt ir.BlockType, familyID string) (ir.BlockInstance, error)
}

// document is the wire shape of a snapshot.
type document struct {
	FormatVersion json.RawMessage `json:"formatVersion"`
	BlockGraph    graphDoc        `json:"blockGraph"`
	PlotState     ir.PlotState    `json:"plotState"`
	ConsoleState  ir.ConsoleState `json:"consoleState"`
}

type graphDoc struct {
	Instances   []instanceDoc   `json:"instances"`
	Connections []ir.Connection `json:"connections"`
}

type instanceDoc struct {
	InstanceID      string        `json:"instanceId"`
	BlockType       ir.BlockType  `json:"blockType"`
	FamilyID        string        `json:"familyId,omitempty"`
	ParameterValues ir.Params     `json:"parameterValues"`
	InputPorts      []ir.PortSpec `json:"inputPorts"`
}

// Save encodes the triple with the current format version. Instances are
// written in id order and connections in (toId, toPort) order, so equal
// sessions encode to equal bytes.
func Save(g ir.BlockGraph, plot ir.PlotState, console ir.ConsoleState) ([]byte, error) {
	g = g.Clone()
	g.Normalize()

	doc := document{
		FormatVersion: json.RawMessage(strconv.Itoa(ir.FormatVersion)),
		BlockGraph: graphDoc{
			Instances:   make([]instanceDoc, len(g.Instances)),
			Connections: g.Connections(),
		},
		PlotState:    plot,
		ConsoleState: console,
	}
	if doc.BlockGraph.Connections == nil {
		doc.BlockGraph.Connections = []ir.Connection{}
	}
	for i, b := range g.Instances {
		ports := make([]ir.PortSpec, len(b.Inputs))
		for j, p := range b.Inputs {
			ports[j] = p.PortSpec
		}
		doc.BlockGraph.Instances[i] = instanceDoc{
			InstanceID:      b.ID,
			BlockType:       b.Type,
			FamilyID:        b.Family,
			ParameterValues: b.Params,
			InputPorts:      ports,
		}
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return blob, nil
}

// Load decodes a snapshot, rebuilding each instance from blocks.
//
// It fails with *UnsupportedVersionError when the format version is newer
// than FormatVersion and with *MalformedSnapshotError on any structural
// defect: unparsable JSON, a missing or invalid version, duplicate ids,
// unknown block types or families, port lists that disagree with the
// family's block definition, or connections that dangle or share a port.
func Load(blocks Blocks, blob []byte) (*Snapshot, error) {
	var probe struct {
		FormatVersion json.RawMessage `json:"formatVersion"`
	}
	if err := json.Unmarshal(blob, &probe); err != nil {
		return nil, &MalformedSnapshotError{Reason: "not a JSON object", Err: err}
	}
	if err := checkVersion(probe.FormatVersion); err != nil {
		return nil, err
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedSnapshotError{Reason: "decode", Err: err}
	}

	g, err := rebuild(blocks, doc.BlockGraph)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Graph: g, Plot: doc.PlotState, Console: doc.ConsoleState}, nil
}

// checkVersion accepts any integral JSON number from 1 to FormatVersion.
// Larger values, however written, are unsupported rather than malformed.
func checkVersion(raw json.RawMessage) error {
	text := string(bytes.TrimSpace(raw))
	if text == "" || text == "null" {
		return malformed("missing formatVersion")
	}
	if c := text[0]; c != '-' && (c < '0' || c > '9') {
		return malformed("formatVersion %s is not a number", text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return &MalformedSnapshotError{Reason: "formatVersion " + text, Err: err}
	}
	if !math.IsInf(f, 0) && f != math.Trunc(f) {
		return malformed("formatVersion %s is not an integer", text)
	}
	if f > ir.FormatVersion {
		e := &UnsupportedVersionError{Raw: text, Supported: ir.FormatVersion}
		if f <= math.MaxInt32 {
			e.Version = int(f)
		}
		return e
	}
	if f < 1 {
		return malformed("invalid formatVersion %s", text)
	}
	return nil
}

func rebuild(blocks Blocks, doc graphDoc) (ir.BlockGraph, error) {
	var g ir.BlockGraph
	for _, d := range doc.Instances {
		if d.InstanceID == "" {
			return ir.BlockGraph{}, malformed("instance with empty id")
		}
		if !d.BlockType.Valid() {
			return ir.BlockGraph{}, malformed("instance %q: unknown block type %q", d.InstanceID, d.BlockType)
		}
		inst, err := blocks.NewInstance(d.InstanceID, d.BlockType, d.FamilyID)
		if err != nil {
			return ir.BlockGraph{}, &MalformedSnapshotError{Reason: fmt.Sprintf("instance %q", d.InstanceID), Err: err}
		}
		if err := samePorts(inst, d.InputPorts); err != nil {
			return ir.BlockGraph{}, err
		}
		inst.Params = d.ParameterValues
		if err := g.Add(inst); err != nil {
			return ir.BlockGraph{}, &MalformedSnapshotError{Reason: "duplicate instanceId", Err: err}
		}
	}

	for _, c := range doc.Connections {
		if g.Find(c.FromID) < 0 {
			return ir.BlockGraph{}, malformed("connection from unknown instance %q", c.FromID)
		}
		if c.FromPort != 0 {
			return ir.BlockGraph{}, malformed("connection from %q: output port %d does not exist", c.FromID, c.FromPort)
		}
		di := g.Find(c.ToID)
		if di < 0 {
			return ir.BlockGraph{}, malformed("connection to unknown instance %q", c.ToID)
		}
		dst := &g.Instances[di]
		if c.ToPort < 0 || c.ToPort >= len(dst.Inputs) {
			return ir.BlockGraph{}, malformed("connection to %q: input port %d does not exist", c.ToID, c.ToPort)
		}
		if dst.Inputs[c.ToPort].Source != nil {
			return ir.BlockGraph{}, malformed("input %s.%s is connected twice", c.ToID, dst.Inputs[c.ToPort].Name)
		}
		dst.Inputs[c.ToPort].Source = &ir.PortRef{InstanceID: c.FromID, Port: c.FromPort}
	}
	return g, nil
}

// samePorts checks the stored ports against the block definition.
func samePorts(inst ir.BlockInstance, stored []ir.PortSpec) error {
	if len(stored) != len(inst.Inputs) {
		return malformed("instance %q: %d input ports, block defines %d", inst.ID, len(stored), len(inst.Inputs))
	}
	for i, p := range stored {
		want := inst.Inputs[i].PortSpec
		if p.Name != want.Name || !slices.Equal(p.Tags, want.Tags) || p.Literal != want.Literal {
			return malformed("instance %q: input port %d is %s[%s], block defines %s[%s]",
				inst.ID, i, p.Name, p.TagString(), want.Name, want.TagString())
		}
	}
	return nil
}
