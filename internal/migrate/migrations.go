// Package migrate applies the journal schema embedded under sql/.
package migrate

import (
	"cmp"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Step is one numbered schema file, e.g. 001_events.sql.
type Step struct {
	Version int
	Name    string
	SQL     string
}

// Steps returns the embedded schema files ordered by version.
func Steps() ([]Step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("invalid schema filename %s: %w", e.Name(), err)
		}
		data, err := schemaFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Version: v, Name: e.Name(), SQL: string(data)})
	}
	slices.SortFunc(steps, func(a, b Step) int { return cmp.Compare(a.Version, b.Version) })
	return steps, nil
}

// Migrate brings db up to the latest embedded version inside one transaction.
func Migrate(db *sql.DB) error {
	steps, err := Steps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	switch err := tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current); {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, s := range steps {
		if s.Version <= current {
			continue
		}
		if _, err := tx.Exec(s.SQL); err != nil {
			return fmt.Errorf("apply %s: %w", s.Name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, s.Version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = s.Version
	}
	return tx.Commit()
}

// Version reports the applied schema version, 0 for a fresh database.
func Version(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}
