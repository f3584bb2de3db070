package sheets

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the database was created by another
// schema version. There are no migrations; the operator moves the file aside.
var ErrSchemaMismatch = errors.New("sheets schema version mismatch")

// initSchema creates the four sheets on a fresh database and verifies the
// version of an existing one.
func (s *Store) initSchema(ctx context.Context) error {
	version, found, err := s.readSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if !found {
		return s.createSchema(ctx)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, wbwatch expects %d (move it aside to start fresh)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) readSchemaVersion(ctx context.Context) (int, bool, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&tables); err != nil {
		return 0, false, persistenceError("schema", "look up schema_version", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, false, persistenceError("schema", "read schema_version", err)
	}
	return version, true, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("schema", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return persistenceError("schema", "create sheets", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return persistenceError("schema", "record version", err)
	}
	if err := tx.Commit(); err != nil {
		return persistenceError("schema", "commit", err)
	}
	return nil
}
