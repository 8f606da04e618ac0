package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
)

func TestDeriveBlockDefs(t *testing.T) {
	r := New().MustRegister(knnConfig())

	defs, err := r.DeriveBlockDefs("knn")
	require.NoError(t, err)

	create, fit, predict := defs[0], defs[1], defs[2]

	assert.Equal(t, ir.BlockCreate, create.Type)
	assert.Empty(t, create.Inputs)
	assert.Equal(t, ir.TagModel, create.Output)
	assert.Equal(t, "knn_create", create.Name)

	assert.Equal(t, ir.BlockFit, fit.Type)
	assert.Equal(t, ir.TagNone, fit.Output)
	require.Len(t, fit.Inputs, 5)
	assert.Equal(t, ir.PortSpec{Name: PortModel, Tags: []ir.TypeTag{ir.TagModel}}, fit.Inputs[0])
	assert.Equal(t, ir.PortSpec{Name: PortFeatures, Tags: []ir.TypeTag{ir.TagArray}}, fit.Inputs[1])
	assert.Equal(t, ir.PortSpec{Name: PortLabels, Tags: []ir.TypeTag{ir.TagArray, ir.TagNumber}}, fit.Inputs[2])
	assert.Equal(t, ir.PortSpec{Name: "k", Tags: []ir.TypeTag{ir.TagNone}, Literal: true}, fit.Inputs[3])
	assert.Equal(t, ir.PortSpec{Name: "weights", Tags: []ir.TypeTag{ir.TagNone}, Literal: true}, fit.Inputs[4])
	assert.Equal(t, map[string]string{"k": "Number of neighbours"}, fit.Hints)

	assert.Equal(t, ir.BlockPredict, predict.Type)
	require.Len(t, predict.Inputs, 2)
	assert.Equal(t, []ir.TypeTag{ir.TagModel}, predict.Inputs[0].Tags)
	assert.Equal(t, []ir.TypeTag{ir.TagArray}, predict.Inputs[1].Tags)
	assert.Equal(t, ir.TagNumber, predict.Output)
}

func TestDeriveBlockDefsUnknownFamily(t *testing.T) {
	_, err := New().DeriveBlockDefs("svm")
	assert.True(t, ir.IsNotFound(err))
}

func TestDisplayBlockDefs(t *testing.T) {
	defs := DisplayBlockDefs()
	require.Len(t, defs, 2)
	assert.Equal(t, ir.BlockPrint, defs[0].Type)
	assert.Equal(t, []ir.TypeTag{ir.TagNone}, defs[0].Inputs[0].Tags)
	assert.Equal(t, ir.BlockPlot, defs[1].Type)
	assert.Len(t, defs[1].Inputs, 2)
}

func TestNewInstance(t *testing.T) {
	r := New().MustRegister(linregConfig())

	b, err := r.NewInstance("f1", ir.BlockFit, "linreg")
	require.NoError(t, err)
	assert.Equal(t, "f1", b.ID)
	assert.Equal(t, "linreg", b.Family)
	assert.Equal(t, ir.TagNone, b.Output.Tag)
	require.Len(t, b.Inputs, 3)
	for _, p := range b.Inputs {
		assert.Nil(t, p.Source)
	}

	p, err := r.NewInstance("p1", ir.BlockPrint, "")
	require.NoError(t, err)
	assert.Empty(t, p.Family)
	assert.Len(t, p.Inputs, 1)

	_, err = r.NewInstance("p2", ir.BlockPrint, "linreg")
	require.Error(t, err)

	_, err = r.NewInstance("x", "train", "linreg")
	require.Error(t, err)

	_, err = r.NewInstance("c9", ir.BlockCreate, "svm")
	assert.True(t, ir.IsNotFound(err))
}

func TestNewInstancePortsAreIndependent(t *testing.T) {
	r := New().MustRegister(linregConfig())

	a, err := r.NewInstance("f1", ir.BlockFit, "linreg")
	require.NoError(t, err)
	a.Inputs[2].Tags[0] = ir.TagNone

	b, err := r.NewInstance("f2", ir.BlockFit, "linreg")
	require.NoError(t, err)
	assert.Equal(t, ir.TagArray, b.Inputs[2].Tags[0])
}
