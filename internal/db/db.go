package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

const defaultName = "levelten-journal"

type Config struct {
	// Name identifies the in-memory database; connections opened with the
	// same name share it.
	Name string
}

func dsn(name string) string {
	if name == "" {
		name = defaultName
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", url.PathEscape(name))
}

// Open opens an in-memory SQLite database. Its contents go away when the
// last connection closes.
func Open(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(cfg.Name))
	if err != nil {
		return nil, err
	}
	// The database lives only while a connection holds it, so keep exactly one.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return conn, nil
}
