package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kobra-dev/kobra/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on models(project_id)
const currentSchemaVersion = 1

// ProjectInfo describes a stored project without its blob.
type ProjectInfo struct {
	ID       string `json:"id"`
	Digest   string `json:"digest"`
	Revision int64  `json:"revision"`
}

// NewProjectID returns a fresh time-ordered project id.
func NewProjectID() string {
	return ir.UUIDv7Generator{}.Generate()
}

// Store is the SQLite gateway for projects and exported models.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a snapshot blob under projectID, replacing any previous blob
// and bumping the revision.
func (s *Store) Put(ctx context.Context, projectID string, blob []byte) error {
	if projectID == "" {
		return fmt.Errorf("put project: empty project id")
	}
	data, err := EncodeBlob(blob)
	if err != nil {
		return fmt.Errorf("put project %s: %w", projectID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, blob, digest, revision, engine_version)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			blob = excluded.blob,
			digest = excluded.digest,
			revision = projects.revision + 1,
			engine_version = excluded.engine_version
	`, projectID, data, ir.SnapshotDigest(blob), ir.EngineVersion)
	if err != nil {
		return fmt.Errorf("put project %s: %w", projectID, err)
	}
	return nil
}

// Get returns the snapshot blob of projectID.
// Returns *ir.NotFoundError if the project does not exist.
func (s *Store) Get(ctx context.Context, projectID string) ([]byte, error) {
	var data []byte
	var digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob, digest FROM projects WHERE id = ?`, projectID,
	).Scan(&data, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ir.NotFoundError{Kind: "project", ID: projectID}
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	blob, err := DecodeBlob(data)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	if got := ir.SnapshotDigest(blob); got != digest {
		return nil, fmt.Errorf("get project %s: digest mismatch: stored %s, computed %s", projectID, digest, got)
	}
	return blob, nil
}

// List returns every stored project ordered by id.
// Returns an empty slice (not nil) if there are none.
func (s *Store) List(ctx context.Context) ([]ProjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, digest, revision
		FROM projects
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []ProjectInfo{}
	for rows.Next() {
		var p ProjectInfo
		if err := rows.Scan(&p.ID, &p.Digest, &p.Revision); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// PutModel stores an exported model. Re-storing an id with the same digest
// is a no-op; a different digest fails with *ir.ConflictError.
func (s *Store) PutModel(ctx context.Context, m ir.ExportedModel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT digest FROM models WHERE id = ?`, m.ID).Scan(&stored)
	switch {
	case err == nil:
		if stored != m.Digest {
			return &ir.ConflictError{Kind: "model", ID: m.ID, Stored: stored, Incoming: m.Digest}
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO models (id, project_id, instance_id, family_id, digest, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.InstanceID, m.FamilyID, m.Digest, m.Payload)
	if err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	return nil
}

// GetModel returns an exported model by id.
// Returns *ir.NotFoundError if it does not exist.
func (s *Store) GetModel(ctx context.Context, id string) (ir.ExportedModel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, instance_id, family_id, digest, payload
		FROM models WHERE id = ?
	`, id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ExportedModel{}, &ir.NotFoundError{Kind: "model", ID: id}
	}
	if err != nil {
		return ir.ExportedModel{}, fmt.Errorf("get model %s: %w", id, err)
	}
	return m, nil
}

// Models lists the models exported from a project, ordered by id.
func (s *Store) Models(ctx context.Context, projectID string) ([]ir.ExportedModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, instance_id, family_id, digest, payload
		FROM models
		WHERE project_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	models := []ir.ExportedModel{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return models, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (ir.ExportedModel, error) {
	var m ir.ExportedModel
	err := row.Scan(&m.ID, &m.ProjectID, &m.InstanceID, &m.FamilyID, &m.Digest, &m.Payload)
	return m, err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_models_project
		ON models(project_id, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
