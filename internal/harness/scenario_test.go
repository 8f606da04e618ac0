package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesFamilyPaths(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "custom_family.yaml"))
	require.NoError(t, err)
	require.Len(t, s.Families, 1)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "families", "mean.cue"), s.Families[0])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_Rejects(t *testing.T) {
	const graph = "graph:\n  blocks:\n    - {id: a, type: print, params: {value: 1}}\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\n" + graph, "name is required"},
		{"missing description", "name: n\n" + graph, "description is required"},
		{"empty graph", "name: n\ndescription: d\ngraph: {blocks: []}\n", "at least one block"},
		{"negative cancel", "name: n\ndescription: d\ncancel_after: -1\n" + graph, "cancel_after"},
		{"unknown error kind", "name: n\ndescription: d\nexpect: {error: boom}\n" + graph, `unknown kind "boom"`},
		{"unknown assertion", "name: n\ndescription: d\nassertions: [{type: trace_count}]\n" + graph, `unknown assertion type "trace_count"`},
		{"contains without text", "name: n\ndescription: d\nassertions: [{type: console_contains}]\n" + graph, "requires text"},
		{"order without instances", "name: n\ndescription: d\nassertions: [{type: statement_order}]\n" + graph, "requires instances"},
		{"typo field", "name: n\ndescription: d\nasertions: []\n" + graph, "failed to parse YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
