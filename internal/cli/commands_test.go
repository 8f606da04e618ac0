package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData decodes the data payload of a JSON response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func decodeError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestFamiliesCommand(t *testing.T) {
	out, _, err := execute(t, "families")
	require.NoError(t, err)
	assert.Contains(t, out, "2 families")
	assert.Contains(t, out, "knn")
	assert.Contains(t, out, "Linear regression (Array -> Number)")
}

func TestFamiliesCommand_ExtraDirectory(t *testing.T) {
	out, _, err := execute(t, "families", "--families", filepath.Join("testdata", "families"), "--format", "json")
	require.NoError(t, err)

	var list FamilyList
	decodeData(t, out, &list)
	ids := make([]string, len(list.Families))
	for i, f := range list.Families {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"knn", "linreg", "ridge"}, ids)
	require.Len(t, list.Families[2].AdditionalFitParams, 1)
	assert.Equal(t, "number & >=0", list.Families[2].AdditionalFitParams[0].ValidationExpr)
}

func TestFamiliesCommand_MissingDirectory(t *testing.T) {
	out, _, err := execute(t, "families", "--families", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E205]")
}

func TestBlocksCommand(t *testing.T) {
	out, _, err := execute(t, "blocks", "ridge", "--families", filepath.Join("testdata", "families"))
	require.NoError(t, err)
	assert.Contains(t, out, "ridge_create (Create Ridge regression) -> Model")
	assert.Contains(t, out, "ridge_fit (Fit Ridge regression) -> None")
	assert.Contains(t, out, `alpha      None literal  "Regularization strength"`)
	assert.Contains(t, out, "ridge_predict (Predict with Ridge regression) -> Number")

	out, _, err = execute(t, "blocks")
	require.NoError(t, err)
	assert.Contains(t, out, "print (Print) -> None")
	assert.Contains(t, out, "plot (Plot) -> None")
}

func TestBlocksCommand_UnknownFamily(t *testing.T) {
	out, _, err := execute(t, "blocks", "nope", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	cliErr := decodeError(t, out)
	assert.Equal(t, ErrCodeNotFound, cliErr.Code)
	assert.Equal(t, `family "nope" not found`, cliErr.Message)
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "linreg.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "✓ graph is valid (5 blocks)\n", out)
}

func TestValidateCommand_Cycle(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "cycle.yaml"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	cliErr := decodeError(t, out)
	assert.Equal(t, "E102", cliErr.Code)
	assert.Equal(t, map[string]any{
		"cycles": []any{[]any{"a", "b"}},
		"path":   []any{"a", "b", "a"},
	}, cliErr.Details)
}

func TestValidateCommand_MissingFile(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to read graph file")
}

func TestCompileCommand_Golden(t *testing.T) {
	out, _, err := execute(t, "compile", filepath.Join("testdata", "linreg.yaml"))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile_linreg", []byte(out))
}

func TestCompileCommand_WritesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.py")
	out, _, err := execute(t, "compile", filepath.Join("testdata", "linreg.yaml"), "-o", path, "--format", "json")
	require.NoError(t, err)

	var res CompileResult
	decodeData(t, out, &res)
	assert.Len(t, res.Statements, 5)
	assert.Equal(t, path, res.Output)

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(src), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "model_lr_create = LinearRegression()", lines[1])
}

func TestRunCommand(t *testing.T) {
	out, _, err := execute(t, "run", filepath.Join("testdata", "linreg.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Linear regression: fitted model_lr_create\n11\n"+
		"# plot \"Training data\": 1 trace(s)\n"+
		"# executed 5 statements\n", out)
}

func TestRunCommand_Failure(t *testing.T) {
	out, _, err := execute(t, "run", filepath.Join("testdata", "failing.yaml"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	cliErr := decodeError(t, out)
	assert.Equal(t, ErrCodeExecution, cliErr.Code)
	details, err := json.Marshal(cliErr.Details)
	require.NoError(t, err)
	var res RunResult
	require.NoError(t, json.Unmarshal(details, &res))
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, []ir.ConsoleLine{
		{Kind: ir.LineOut, Text: `"training"`},
		{Kind: ir.LineMarker, Text: "✗ k_fit: fit: k=3 exceeds 2 training rows"},
	}, res.Console)
}

func TestRunCommand_CompileFailure(t *testing.T) {
	out, _, err := execute(t, "run", filepath.Join("testdata", "cycle.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E102]")
}

func TestRunCommand_Metrics(t *testing.T) {
	_, stderr, err := execute(t, "run", filepath.Join("testdata", "linreg.yaml"), "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, `kobra_sandbox_runs_total{outcome="ok"} 1`)
	assert.Contains(t, stderr, `kobra_sandbox_statements_total{block="fit",outcome="ok"} 1`)
}

func TestProjectLifecycle(t *testing.T) {
	for _, backend := range []string{BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			db := filepath.Join(t.TempDir(), "kobra-data")
			global := []string{"--db", db, "--backend", backend, "--format", "json"}
			args := func(a ...string) []string { return append(a, global...) }

			out, _, err := execute(t, args("save", filepath.Join("testdata", "linreg.yaml"), "--project", "demo")...)
			require.NoError(t, err)
			var saved SaveResult
			decodeData(t, out, &saved)
			assert.Equal(t, "demo", saved.Project)
			assert.Len(t, saved.Digest, 64)

			out, _, err = execute(t, args("show")...)
			require.NoError(t, err)
			var list ProjectList
			decodeData(t, out, &list)
			assert.Equal(t, []string{"demo"}, list.Projects)

			out, _, err = execute(t, args("resume", "--project", "demo")...)
			require.NoError(t, err)
			var run RunResult
			decodeData(t, out, &run)
			assert.Equal(t, "demo", run.Project)
			assert.Equal(t, []string{"lr_create"}, run.Models)
			assert.Equal(t, map[string]string{"lr_predict": "11"}, run.Predictions)

			out, _, err = execute(t, args("show", "demo")...)
			require.NoError(t, err)
			var view ProjectView
			decodeData(t, out, &view)
			assert.Len(t, view.Graph.Blocks, 5)
			assert.True(t, view.Plot.IsActive)
			assert.Equal(t, "11", view.Console[1].Text)
			assert.NotEqual(t, saved.Digest, view.Digest)

			out, _, err = execute(t, args("export", "--project", "demo", "--instance", "lr_create")...)
			require.NoError(t, err)
			var exported ExportResult
			decodeData(t, out, &exported)
			assert.Equal(t, "linreg", exported.Family)
			assert.Equal(t, "demo", exported.Project)
			assert.NotEmpty(t, exported.ID)
			assert.Positive(t, exported.Size)
		})
	}
}

func TestSaveCommand_GeneratesProjectID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kobra.db")
	out, _, err := execute(t, "save", filepath.Join("testdata", "linreg.yaml"), "--run", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ saved project ")
}

func TestShowCommand_UnknownProject(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kobra.db")
	out, _, err := execute(t, "show", "ghost", "--db", db, "--format", "json")
	require.Error(t, err)
	cliErr := decodeError(t, out)
	assert.Equal(t, ErrCodeNotFound, cliErr.Code)
}

func TestExportCommand_UntrainedInstance(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kobra.db")
	_, _, err := execute(t, "save", filepath.Join("testdata", "linreg.yaml"), "--project", "demo", "--db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "export", "--project", "demo", "--instance", "show", "--db", db, "--format", "json")
	require.Error(t, err)
	cliErr := decodeError(t, out)
	assert.Equal(t, ErrCodeNotFound, cliErr.Code)
	assert.Equal(t, `model "show" not found`, cliErr.Message)
}
