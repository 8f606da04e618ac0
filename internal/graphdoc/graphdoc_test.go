package graphdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/testutil"
)

const pipelineYAML = `
name: demo
blocks:
  - id: lr_create
    type: create
    family: linreg
  - id: lr_fit
    type: fit
    family: linreg
    inputs: {model: lr_create}
    params:
      features: [1, 2, 3, 4]
      labels: [3, 5, 7, 9]
  - id: lr_predict
    type: predict
    family: linreg
    inputs: {model: lr_create}
    params: {input: [5]}
  - id: show
    type: print
    inputs: {value: lr_predict}
`

func TestBuild_MatchesGraphBuilder(t *testing.T) {
	reg := testutil.NewRegistry(t)
	doc, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)
	assert.Equal(t, "demo", doc.Name)

	g, err := doc.Build(reg)
	require.NoError(t, err)

	want := testutil.NewGraph(t, reg).
		Pipeline("lr", "linreg").
		Block("show", ir.BlockPrint, "").
		Connect("lr_predict", "show", registry.PortValue).
		Graph()
	assert.Equal(t, want, g)
}

func TestFromGraph_RoundTrip(t *testing.T) {
	reg := testutil.NewRegistry(t)
	g := testutil.NewGraph(t, reg).
		Pipeline("rf", "rf").
		Literal("rf_fit", "trees", ir.Number(10)).
		Block("chart", ir.BlockPlot, "").
		Literal("chart", registry.PortX, ir.NumbersOf(1.5, 2)).
		Literal("chart", registry.PortY, ir.NumbersOf(3, 4)).
		Literal("chart", registry.ParamTitle, ir.String("Forest")).
		Graph()

	data, err := FromGraph(g).Marshal()
	require.NoError(t, err)

	doc, err := Parse(data)
	require.NoError(t, err)
	back, err := doc.Build(reg)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("blocks:\n  - id: a\n    type: print\n    colour: red\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestBuild_Errors(t *testing.T) {
	reg := testutil.NewRegistry(t)
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing id", "blocks:\n  - type: print\n", "block 0: id is required"},
		{"unknown type", "blocks:\n  - id: a\n    type: train\n", `unknown type "train"`},
		{"unknown family", "blocks:\n  - id: a\n    type: create\n    family: svm\n", "block a"},
		{"duplicate", "blocks:\n  - id: a\n    type: print\n  - id: a\n    type: print\n", "duplicate instance id"},
		{"dangling input", "blocks:\n  - id: a\n    type: print\n    inputs: {value: ghost}\n", "unknown instance id"},
		{"unknown port", "blocks:\n  - id: a\n    type: print\n  - id: b\n    type: print\n    inputs: {x: a}\n", "unknown input port"},
		{"null literal", "blocks:\n  - id: a\n    type: print\n    params: {value: null}\n", "null is not a literal value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = doc.Build(reg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read graph file")
}
