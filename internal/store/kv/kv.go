// Package kv is a project and model gateway backed by Badger.
//
// Keys are "project/<id>" and "model/<id>". Project values are zstd-compressed
// snapshot blobs; model values are msgpack-encoded records.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/store"
)

const (
	projectPrefix = "project/"
	modelPrefix   = "model/"
)

// Config configures a Badger gateway.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Gateway stores projects and models in Badger.
type Gateway struct {
	db *badger.DB
}

// Open opens or creates a Badger database.
func Open(cfg Config) (*Gateway, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Gateway{db: db}, nil
}

// Close closes the database.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Put stores a snapshot blob under projectID.
func (g *Gateway) Put(ctx context.Context, projectID string, blob []byte) error {
	if projectID == "" {
		return fmt.Errorf("put project: empty project id")
	}
	data, err := store.EncodeBlob(blob)
	if err != nil {
		return fmt.Errorf("put project %s: %w", projectID, err)
	}
	err = g.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(projectPrefix+projectID), data)
	})
	if err != nil {
		return fmt.Errorf("put project %s: %w", projectID, err)
	}
	return nil
}

// Get returns the snapshot blob of projectID.
// Returns *ir.NotFoundError if the project does not exist.
func (g *Gateway) Get(ctx context.Context, projectID string) ([]byte, error) {
	data, err := g.get(projectPrefix + projectID)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &ir.NotFoundError{Kind: "project", ID: projectID}
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	blob, err := store.DecodeBlob(data)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return blob, nil
}

// Projects lists stored project ids in key order.
func (g *Gateway) Projects(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(projectPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(projectPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return ids, nil
}

// PutModel stores an exported model. An existing id is left untouched when
// the digests agree and fails with *ir.ConflictError when they differ.
func (g *Gateway) PutModel(ctx context.Context, m ir.ExportedModel) error {
	data, err := msgpack.Marshal(&m)
	if err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	key := []byte(modelPrefix + m.ID)
	err = g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(key, data)
		}
		if err != nil {
			return err
		}
		var prev ir.ExportedModel
		if err := item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &prev)
		}); err != nil {
			return err
		}
		if prev.Digest != m.Digest {
			return &ir.ConflictError{Kind: "model", ID: m.ID, Stored: prev.Digest, Incoming: m.Digest}
		}
		return nil
	})
	if ir.IsConflict(err) {
		return err
	}
	if err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	return nil
}

// GetModel returns an exported model by id.
func (g *Gateway) GetModel(ctx context.Context, id string) (ir.ExportedModel, error) {
	data, err := g.get(modelPrefix + id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.ExportedModel{}, &ir.NotFoundError{Kind: "model", ID: id}
	}
	if err != nil {
		return ir.ExportedModel{}, fmt.Errorf("get model %s: %w", id, err)
	}
	var m ir.ExportedModel
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return ir.ExportedModel{}, fmt.Errorf("decode model %s: %w", id, err)
	}
	return m, nil
}

func (g *Gateway) get(key string) ([]byte, error) {
	var out []byte
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}
