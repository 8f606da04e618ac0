// Package graphdoc reads and writes block graphs as YAML documents, the
// format the command line tools take as input.
//
//	blocks:
//	  - id: lr_create
//	    type: create
//	    family: linreg
//	  - id: lr_fit
//	    type: fit
//	    family: linreg
//	    inputs: {model: lr_create}
//	    params: {features: [1, 2, 3], labels: [2, 4, 6]}
package graphdoc

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/snapshot"
)

// Document is a YAML graph document.
type Document struct {
	// Name is an optional project name.
	Name string `yaml:"name,omitempty"`

	// Blocks lists the placed blocks.
	Blocks []Block `yaml:"blocks"`
}

// Block is one placed block.
type Block struct {
	ID     string `yaml:"id"`
	Type   string `yaml:"type"`
	Family string `yaml:"family,omitempty"`

	// Params holds parameter values and port literals, keyed by name.
	Params map[string]any `yaml:"params,omitempty"`

	// Inputs maps an input port name to the id of the block feeding it.
	Inputs map[string]string `yaml:"inputs,omitempty"`
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &doc, nil
}

// Load reads and parses a YAML document file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Build places every block through blocks, then sets literals and wires
// inputs. Type checking is left to the compiler.
func (d *Document) Build(blocks snapshot.Blocks) (ir.BlockGraph, error) {
	var g ir.BlockGraph
	for i, b := range d.Blocks {
		if b.ID == "" {
			return ir.BlockGraph{}, fmt.Errorf("block %d: id is required", i)
		}
		bt := ir.BlockType(b.Type)
		if !bt.Valid() {
			return ir.BlockGraph{}, fmt.Errorf("block %s: unknown type %q", b.ID, b.Type)
		}
		inst, err := blocks.NewInstance(b.ID, bt, b.Family)
		if err != nil {
			return ir.BlockGraph{}, fmt.Errorf("block %s: %w", b.ID, err)
		}
		if err := g.Add(inst); err != nil {
			return ir.BlockGraph{}, fmt.Errorf("block %s: %w", b.ID, err)
		}
	}

	for _, b := range d.Blocks {
		for name, raw := range b.Params {
			v, err := ir.FromGo(raw)
			if err != nil {
				return ir.BlockGraph{}, fmt.Errorf("block %s: param %s: %w", b.ID, name, err)
			}
			if err := g.SetParam(b.ID, name, v); err != nil {
				return ir.BlockGraph{}, err
			}
		}
		for port, from := range b.Inputs {
			if err := g.Connect(from, b.ID, port); err != nil {
				return ir.BlockGraph{}, fmt.Errorf("block %s: %w", b.ID, err)
			}
		}
	}
	return g, nil
}

// FromGraph converts a graph into a document with blocks in id order.
func FromGraph(g ir.BlockGraph) *Document {
	g = g.Clone()
	g.Normalize()
	doc := &Document{Blocks: make([]Block, len(g.Instances))}
	for i, inst := range g.Instances {
		b := Block{ID: inst.ID, Type: string(inst.Type), Family: inst.Family}
		if len(inst.Params) > 0 {
			b.Params = make(map[string]any, len(inst.Params))
			for k, v := range inst.Params {
				b.Params[k] = ir.ToGo(v)
			}
		}
		for _, p := range inst.Inputs {
			if p.Source == nil {
				continue
			}
			if b.Inputs == nil {
				b.Inputs = make(map[string]string)
			}
			b.Inputs[p.Name] = p.Source.InstanceID
		}
		doc.Blocks[i] = b
	}
	return doc
}

// Marshal encodes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode graph document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode graph document: %w", err)
	}
	return buf.Bytes(), nil
}
