package snapshot

import (
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/testutil"
)

func sessionGraph(t *testing.T, reg *registry.Registry) ir.BlockGraph {
	return testutil.NewGraph(t, reg).
		Pipeline("lr", "linreg").
		Pipeline("rf", "rf").
		Literal("rf_fit", "trees", ir.Number(50)).
		Literal("lr_create", "fit_intercept", ir.Bool(true)).
		Block("out", ir.BlockPrint, "").
		Connect("lr_predict", "out", registry.PortValue).
		Block("chart", ir.BlockPlot, "").
		Literal("chart", registry.PortX, ir.Array{ir.NumbersOf(1, 2), ir.NumbersOf(3, 4)}).
		Literal("chart", registry.PortY, ir.NumbersOf(0.5, -2)).
		Literal("chart", registry.ParamTitle, ir.String("Fit <&> \"quality\"")).
		Graph()
}

func TestRoundTrip(t *testing.T) {
	reg := testutil.NewRegistry(t)
	g := sessionGraph(t, reg)
	plot := ir.PlotState{
		IsActive:  true,
		PlotTitle: "Predictions",
		PlotData: []ir.Trace{
			{Name: "chart", Type: "scatter", Mode: "markers", X: []float64{1, 2}, Y: []float64{3.25, 1e-7}},
		},
	}
	console := ir.ConsoleState{Lines: []ir.ConsoleLine{
		{Kind: ir.LineOut, Text: "Linear regression: fitted model_lr_create"},
		{Kind: ir.LineMarker, Text: "✗ rf_fit: fit: boom"},
	}}

	blob, err := Save(g, plot, console)
	require.NoError(t, err)

	snap, err := Load(reg, blob)
	require.NoError(t, err)
	if diff := cmp.Diff(g, snap.Graph); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, plot, snap.Plot)
	assert.Equal(t, console, snap.Console)

	again, err := Save(snap.Graph, snap.Plot, snap.Console)
	require.NoError(t, err)
	assert.Equal(t, string(blob), string(again))
}

func TestRoundTrip_EmptySession(t *testing.T) {
	reg := testutil.NewRegistry(t)
	blob, err := Save(ir.BlockGraph{}, ir.DefaultPlotState(), ir.ConsoleState{})
	require.NoError(t, err)

	snap, err := Load(reg, blob)
	require.NoError(t, err)
	assert.Empty(t, snap.Graph.Instances)
	assert.Equal(t, ir.DefaultPlotState(), snap.Plot)
	assert.Equal(t, ir.ConsoleState{}, snap.Console)
}

func TestSave_Deterministic(t *testing.T) {
	reg := testutil.NewRegistry(t)
	g := sessionGraph(t, reg)
	reversed := g.Clone()
	slices.Reverse(reversed.Instances)

	a, err := Save(g, ir.DefaultPlotState(), ir.ConsoleState{})
	require.NoError(t, err)
	b, err := Save(reversed, ir.DefaultPlotState(), ir.ConsoleState{})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSave_Golden(t *testing.T) {
	reg := testutil.NewRegistry(t)
	g := testutil.NewGraph(t, reg).
		Block("out", ir.BlockPrint, "").
		Literal("out", registry.PortValue, ir.String("hi")).
		Graph()

	blob, err := Save(g, ir.DefaultPlotState(), ir.ConsoleState{})
	require.NoError(t, err)

	gold := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	gold.Assert(t, "print_only", blob)
}

const printPorts = `[{"name":"value","typeTags":["None"]}]`

const linregFitPorts = `[{"name":"model","typeTags":["Model"]},{"name":"features","typeTags":["Array"]},{"name":"labels","typeTags":["Array","Number"]}]`

func blob(version string, instances, connections string) []byte {
	return []byte(fmt.Sprintf(`{"formatVersion":%s,"blockGraph":{"instances":[%s],"connections":[%s]},`+
		`"plotState":{"isActive":false,"plotData":[],"plotTitle":""},"consoleState":{"lines":[]}}`,
		version, instances, connections))
}

func printInstance(id string) string {
	return fmt.Sprintf(`{"instanceId":%q,"blockType":"print","parameterValues":{},"inputPorts":%s}`, id, printPorts)
}

func TestLoad_Rejects(t *testing.T) {
	reg := testutil.NewRegistry(t)

	tests := []struct {
		name        string
		blob        []byte
		unsupported bool
		reason      string
	}{
		{"newer version", blob("2", printInstance("a"), ""), true, ""},
		{"zero version", blob("0", "", ""), false, "invalid formatVersion 0"},
		{"negative version", blob("-3", "", ""), false, "invalid formatVersion -3"},
		{"fractional version", blob("1.5", "", ""), false, "formatVersion 1.5 is not an integer"},
		{"string version", blob(`"1"`, "", ""), false, `formatVersion "1" is not a number`},
		{"null version", blob("null", "", ""), false, "missing formatVersion"},
		{"missing version", []byte(`{"blockGraph":{"instances":[],"connections":[]}}`), false, "missing formatVersion"},
		{"not json", []byte(`{"formatVersion":1,`), false, "not a JSON object"},
		{"array", []byte(`[1]`), false, "not a JSON object"},
		{"unknown field", []byte(`{"formatVersion":1,"extra":true}`), false, "decode"},
		{"duplicate id", blob("1", printInstance("a")+","+printInstance("a"), ""), false, "duplicate instanceId"},
		{"empty id", blob("1", printInstance(""), ""), false, "empty id"},
		{"unknown block type", blob("1", `{"instanceId":"a","blockType":"train","inputPorts":[]}`, ""), false, `unknown block type "train"`},
		{"unknown family", blob("1", `{"instanceId":"a","blockType":"fit","familyId":"svm","inputPorts":[]}`, ""), false, `instance "a"`},
		{"port mismatch", blob("1", `{"instanceId":"a","blockType":"print","inputPorts":[{"name":"value","typeTags":["Array"]}]}`, ""), false, "input port 0 is value[Array]"},
		{"missing ports", blob("1", `{"instanceId":"a","blockType":"print","inputPorts":[]}`, ""), false, "0 input ports, block defines 1"},
		{"dangling source", blob("1", printInstance("a"), `{"fromId":"ghost","fromPort":0,"toId":"a","toPort":0}`), false, `unknown instance "ghost"`},
		{"dangling destination", blob("1", printInstance("a"), `{"fromId":"a","fromPort":0,"toId":"ghost","toPort":0}`), false, `unknown instance "ghost"`},
		{"bad output port", blob("1", printInstance("a")+","+printInstance("b"), `{"fromId":"a","fromPort":1,"toId":"b","toPort":0}`), false, "output port 1"},
		{"bad input port", blob("1", printInstance("a")+","+printInstance("b"), `{"fromId":"a","fromPort":0,"toId":"b","toPort":3}`), false, "input port 3"},
		{
			"double connection",
			blob("1", printInstance("a")+","+printInstance("b")+","+printInstance("c"),
				`{"fromId":"a","fromPort":0,"toId":"c","toPort":0},{"fromId":"b","fromPort":0,"toId":"c","toPort":0}`),
			false, "connected twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Load(reg, tt.blob)
			require.Error(t, err)
			assert.Nil(t, snap)
			if tt.unsupported {
				assert.True(t, IsUnsupportedVersion(err))
				var ue *UnsupportedVersionError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, 2, ue.Version)
				assert.Equal(t, ir.FormatVersion, ue.Supported)
				return
			}
			assert.True(t, IsMalformed(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestLoad_NewerVersionSpellings(t *testing.T) {
	reg := testutil.NewRegistry(t)

	tests := []struct {
		raw     string
		version int
	}{
		{"2", 2},
		{"2.0", 2},
		{"2e0", 2},
		{"99999999999999999999", 0},
		{"1e400", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := Load(reg, blob(tt.raw, printInstance("a"), ""))
			var ue *UnsupportedVersionError
			require.ErrorAs(t, err, &ue)
			assert.False(t, IsMalformed(err))
			assert.Equal(t, tt.version, ue.Version)
			assert.Equal(t, tt.raw, ue.Raw)
			assert.Contains(t, err.Error(), "version "+tt.raw+" is newer")
		})
	}
}

func TestLoad_IntegralFloatVersion(t *testing.T) {
	reg := testutil.NewRegistry(t)
	snap, err := Load(reg, blob("1.0", printInstance("a"), ""))
	require.NoError(t, err)
	assert.Len(t, snap.Graph.Instances, 1)
}

func TestLoad_UnknownFamilyWrapsNotFound(t *testing.T) {
	reg := testutil.NewRegistry(t)
	_, err := Load(reg, blob("1", `{"instanceId":"a","blockType":"create","familyId":"svm","inputPorts":[]}`, ""))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.True(t, ir.IsNotFound(err))
}

func TestLoad_RebuildsConnections(t *testing.T) {
	reg := testutil.NewRegistry(t)
	createPorts := `[]`
	instances := fmt.Sprintf(`{"instanceId":"c","blockType":"create","familyId":"linreg","parameterValues":{},"inputPorts":%s},`+
		`{"instanceId":"f","blockType":"fit","familyId":"linreg","parameterValues":{"features":[1,2],"labels":[3,4]},"inputPorts":%s}`,
		createPorts, linregFitPorts)
	snap, err := Load(reg, blob("1", instances, `{"fromId":"c","fromPort":0,"toId":"f","toPort":0}`))
	require.NoError(t, err)

	f, ok := snap.Graph.Instance("f")
	require.True(t, ok)
	require.NotNil(t, f.Inputs[0].Source)
	assert.Equal(t, "c", f.Inputs[0].Source.InstanceID)
	assert.Nil(t, f.Inputs[1].Source)
	assert.Equal(t, ir.NumbersOf(1, 2), f.Params[registry.PortFeatures])
	assert.Equal(t, []ir.Connection{{FromID: "c", ToID: "f"}}, snap.Graph.Connections())
}
