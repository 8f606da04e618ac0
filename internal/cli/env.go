package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/families"
	"github.com/kobra-dev/kobra/internal/graphdoc"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/session"
	"github.com/kobra-dev/kobra/internal/store"
	"github.com/kobra-dev/kobra/internal/store/kv"
)

// Project store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// projectStore is what commands need from a project database.
type projectStore interface {
	session.Gateway
	session.ModelArchive
	ProjectIDs(ctx context.Context) ([]string, error)
	Close() error
}

// newFormatter builds the formatter for a command from the global flags.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a debug logger on stderr in verbose mode and a discarding
// logger otherwise.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// loadRegistry returns the sealed family registry: the built-ins, plus the
// CUE package in --families when set.
func loadRegistry(opts *RootOptions) (*registry.Registry, error) {
	if opts.Families == "" {
		return registry.Default(), nil
	}
	reg, err := registry.Builtin()
	if err != nil {
		return nil, err
	}
	if err := reg.LoadDir(opts.Families); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

// loadGraph reads a YAML graph document and builds it against reg.
func loadGraph(reg *registry.Registry, path string) (ir.BlockGraph, error) {
	doc, err := graphdoc.Load(path)
	if err != nil {
		return ir.BlockGraph{}, err
	}
	return doc.Build(reg)
}

// loadInput loads the registry and the graph document at path, reporting
// failures through f as command errors.
func loadInput(opts *RootOptions, path string, f *OutputFormatter) (*registry.Registry, ir.BlockGraph, error) {
	reg, err := loadRegistry(opts)
	if err != nil {
		return nil, ir.BlockGraph{}, f.Fail(ExitCommandError, "failed to load families", err, nil)
	}
	g, err := loadGraph(reg, path)
	if err != nil {
		return nil, ir.BlockGraph{}, f.Fail(ExitCommandError, "failed to load graph", err, nil)
	}
	f.VerboseLog("Loaded %d blocks from %s", len(g.Instances), path)
	return reg, g, nil
}

// newSession creates a session over reg and the built-in capabilities.
func newSession(reg *registry.Registry, opts ...session.Option) *session.Session {
	return session.New(reg, families.Capabilities(), opts...)
}

// openStore opens the project database selected by --backend and --db.
func openStore(opts *RootOptions, logger *slog.Logger) (projectStore, error) {
	if opts.Backend == BackendBadger {
		cfg := kv.DefaultConfig(opts.DB)
		cfg.Logger = logger
		gw, err := kv.Open(cfg)
		if err != nil {
			return nil, err
		}
		return badgerStore{gw}, nil
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, err
	}
	return sqliteStore{st}, nil
}

type sqliteStore struct {
	*store.Store
}

func (s sqliteStore) ProjectIDs(ctx context.Context) ([]string, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(infos))
	for i, p := range infos {
		ids[i] = p.ID
	}
	return ids, nil
}

type badgerStore struct {
	*kv.Gateway
}

func (s badgerStore) ProjectIDs(ctx context.Context) ([]string, error) {
	return s.Projects(ctx)
}
