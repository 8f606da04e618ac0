package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.True(t, r.Sealed())

	fams := r.Families()
	require.Len(t, fams, 2)
	assert.Equal(t, "knn", fams[0].ID)
	assert.Equal(t, "linreg", fams[1].ID)

	knn := fams[0]
	require.Len(t, knn.AdditionalFitParams, 1)
	assert.Equal(t, "k", knn.AdditionalFitParams[0].ID)
	assert.Equal(t, "int & >0", knn.AdditionalFitParams[0].ValidationExpr)
	assert.Equal(t, ir.TagArray, knn.PredictInputType)

	linreg := fams[1]
	assert.Equal(t, "Linear regression", linreg.FriendlyName)
	assert.Equal(t, 230, linreg.Colour)
	assert.Empty(t, linreg.AdditionalFitParams)
}

func TestLoadCUE(t *testing.T) {
	src := `
family: tree: {
	friendlyName:      "Decision tree"
	createTemplate:    "Tree({{.Params}})"
	fitTemplate:       "{{.Model}}.fit({{.Features}}, {{.Labels}}, depth={{.Extra.depth}})"
	predictTemplate:   "{{.Model}}.predict({{.Input}})"
	predictInputType:  "Array"
	predictOutputType: "Array"
	additionalFitParams: [{id: "depth", validationExpr: "int & >=1 & <=32"}]
}
`
	r := New()
	require.NoError(t, r.LoadCUE("tree.cue", []byte(src)))

	cfg, err := r.Lookup("tree")
	require.NoError(t, err)
	assert.Equal(t, "tree", cfg.ID)
	assert.Equal(t, 0, cfg.Colour)
	assert.Equal(t, ir.TagArray, cfg.PredictOutputType)
	require.Len(t, cfg.AdditionalFitParams, 1)
	assert.Empty(t, cfg.AdditionalFitParams[0].Message)

	require.NoError(t, r.CheckParam("tree", "depth", ir.Number(4)))
	assert.True(t, IsParamError(r.CheckParam("tree", "depth", ir.Number(64))))
}

func TestLoadCUERejects(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		contain string
	}{
		{
			name:    "syntax error",
			src:     `family: x: {`,
			contain: "E205",
		},
		{
			name:    "no families",
			src:     `other: 1`,
			contain: "no families declared",
		},
		{
			name: "bad enum",
			src: `family: x: {
	friendlyName: "X", createTemplate: "a", fitTemplate: "b", predictTemplate: "c"
	predictInputType: "Matrix", predictOutputType: "Number"
}`,
			contain: "predictInputType",
		},
		{
			name: "empty friendly name",
			src: `family: x: {
	friendlyName: "", createTemplate: "a", fitTemplate: "b", predictTemplate: "c"
	predictInputType: "Array", predictOutputType: "Number"
}`,
			contain: "friendlyName",
		},
		{
			name: "missing template",
			src: `family: x: {
	friendlyName: "X", createTemplate: "a", fitTemplate: "b"
	predictInputType: "Array", predictOutputType: "Number"
}`,
			contain: "predictTemplate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().LoadCUE("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "got %T: %v", err, err)
			assert.Contains(t, err.Error(), tt.contain)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package families

family: ridge: {
	friendlyName:      "Ridge regression"
	createTemplate:    "Ridge({{.Params}})"
	fitTemplate:       "{{.Model}}.fit({{.Features}}, {{.Labels}})"
	predictTemplate:   "{{.Model}}.predict({{.Input}})"
	predictInputType:  "Array"
	predictOutputType: "Number"
	colour:            12
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ridge.cue"), []byte(src), 0o644))

	r, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, r.LoadDir(dir))

	ids := make([]string, 0)
	for _, f := range r.Families() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"knn", "linreg", "ridge"}, ids)
}

func TestLoadDirMissing(t *testing.T) {
	err := New().LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
