package kv

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobra-dev/kobra/internal/ir"
)

func openTest(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestProjects_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := openTest(t)
	blob := []byte(`{"formatVersion":1,"blockGraph":{"instances":[],"connections":[]}}`)

	require.NoError(t, g.Put(ctx, "p2", blob))
	require.NoError(t, g.Put(ctx, "p1", []byte(`{}`)))

	got, err := g.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	require.NoError(t, g.Put(ctx, "p2", []byte(`{"v":2}`)))
	got, err = g.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	ids, err := g.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	_, err = g.Get(ctx, "missing")
	assert.True(t, ir.IsNotFound(err))
	assert.Error(t, g.Put(ctx, "", blob))
}

func TestModels_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := openTest(t)
	m := ir.ExportedModel{
		ID:         "m-1",
		ProjectID:  "p1",
		InstanceID: "c",
		FamilyID:   "linreg",
		Digest:     ir.ModelDigest([]byte{1, 2, 3}),
		Payload:    []byte{1, 2, 3},
	}

	require.NoError(t, g.PutModel(ctx, m))
	require.NoError(t, g.PutModel(ctx, m))

	err := g.PutModel(ctx, ir.ExportedModel{ID: "m-1", FamilyID: "other", Digest: ir.ModelDigest([]byte{9})})
	var ce *ir.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, m.Digest, ce.Stored)

	got, err := g.GetModel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = g.GetModel(ctx, "m-2")
	assert.True(t, ir.IsNotFound(err))
}

func TestOpen_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, g.Put(ctx, "p1", []byte(`{"formatVersion":1}`)))
	require.NoError(t, g.Close())

	g, err = Open(cfg)
	require.NoError(t, err)
	defer g.Close()
	got, err := g.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"formatVersion":1}`, string(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorContains(t, err, "path is required")
}
